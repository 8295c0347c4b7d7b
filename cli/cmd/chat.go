package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/anshu-sharma0/chatmessage/internal/bridge"
	"github.com/anshu-sharma0/chatmessage/internal/conversation"
	"github.com/anshu-sharma0/chatmessage/internal/identity"
	"github.com/anshu-sharma0/chatmessage/internal/ui"
)

func newUsersCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List the people you can chat with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := e.requireIdentity()
			if err != nil {
				return err
			}
			s := e.session(id, nil)
			defer s.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL")
			for _, u := range s.Users(cmd.Context()) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Name, u.Email)
			}
			return w.Flush()
		},
	}
}

func newChatCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the chat screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := e.requireIdentity()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			var b conversation.Bridge
			conn, err := e.dialBridge(ctx, id)
			if err != nil {
				glog.Warningf("chat: realtime unavailable, continuing without live updates: %v", err)
			} else {
				defer conn.Close()
				b = conn
			}

			s := e.session(id, b)
			defer s.Close()
			if conn != nil {
				go s.Listen(ctx, conn.Events())
			}
			return ui.Run(ctx, s)
		},
	}
}

func (e *env) session(id identity.Identity, b conversation.Bridge) *conversation.Session {
	return conversation.New(id, e.api(id.Token), b, conversation.Options{
		TypingDebounce:  e.cfg.TypingDebounce,
		StopTypingDelay: e.cfg.StopTypingDelay,
		PeerTypingTTL:   e.cfg.PeerTypingTTL,
	})
}

func (e *env) dialBridge(ctx context.Context, id identity.Identity) (*bridge.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.HTTPTimeout)
	defer cancel()
	return bridge.Dial(dialCtx, e.cfg.WSURL, bridge.Options{
		Token:        id.Token,
		PingInterval: e.cfg.PingInterval,
		WriteTimeout: e.cfg.WriteTimeout,
	})
}
