// Package fanout relays conversation room broadcasts between chatd instances over Redis pub/sub.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "chat:room:"

// envelope is what travels over the pub/sub channel.
type envelope struct {
	Origin         string          `json:"origin"`
	ConversationID string          `json:"conversationId"`
	Data           json.RawMessage `json:"data"`
}

// DeliverFunc hands a frame published by another instance to the local room.
type DeliverFunc func(conversationID string, data []byte)

// Redis publishes local broadcasts and delivers those of other instances.
type Redis struct {
	rdb    *redis.Client
	origin string
}

// NewRedis connects to the server at url (redis://[:password@]host:port/db).
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, origin: uuid.NewString()}, nil
}

// Publish sends a room frame to the other instances.
func (r *Redis) Publish(ctx context.Context, conversationID string, data []byte) error {
	payload, err := json.Marshal(envelope{Origin: r.origin, ConversationID: conversationID, Data: data})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, channelPrefix+conversationID, payload).Err()
}

// Run delivers frames from other instances until ctx is done.
func (r *Redis) Run(ctx context.Context, deliver DeliverFunc) error {
	pubsub := r.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Channel, msg.Payload, deliver)
		}
	}
}

func (r *Redis) handle(channel, payload string, deliver DeliverFunc) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		glog.Warningf("fanout: dropping malformed frame on %s: %v", channel, err)
		return
	}
	if env.Origin == r.origin {
		return
	}
	if env.ConversationID != strings.TrimPrefix(channel, channelPrefix) {
		glog.Warningf("fanout: frame for %s arrived on %s", env.ConversationID, channel)
		return
	}
	deliver(env.ConversationID, env.Data)
}

// Close closes the connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
