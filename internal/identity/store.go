// Package identity persists the authentication state of the local user and resolves it
// into an Identity at session start.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

// Fixed storage keys of the authentication state.
const (
	KeyAuthToken = "authToken"
	KeyUser      = "user"
)

var bucketName = []byte("auth")

// ErrNotLoggedIn is returned when no token is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// Identity is the resolved authentication state of the local user.
type Identity struct {
	Token   string
	Profile domain.Profile
}

// UserID returns the local user's identifier.
func (i Identity) UserID() string {
	return i.Profile.ID
}

// Store is a bbolt-backed key/value store for the authentication state.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init session store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the token and profile after a successful login.
func (s *Store) Save(token string, profile *domain.Profile) error {
	var user []byte
	if profile != nil {
		var err error
		if user, err = json.Marshal(profile); err != nil {
			return fmt.Errorf("failed to marshal profile: %w", err)
		}
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if err := b.Put([]byte(KeyAuthToken), []byte(token)); err != nil {
			return err
		}
		if user == nil {
			return b.Delete([]byte(KeyUser))
		}
		return b.Put([]byte(KeyUser), user)
	})
}

// Clear removes the stored authentication state.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if err := b.Delete([]byte(KeyAuthToken)); err != nil {
			return err
		}
		return b.Delete([]byte(KeyUser))
	})
}

// Token returns the stored token, or "" when none is stored.
func (s *Store) Token() (string, error) {
	var token string
	err := s.db.View(func(tx *bbolt.Tx) error {
		token = string(tx.Bucket(bucketName).Get([]byte(KeyAuthToken)))
		return nil
	})
	return token, err
}

// Resolve reads the stored state once into an Identity.
// A stored token with a missing or unreadable profile yields an Identity with an empty user id.
func (s *Store) Resolve() (Identity, error) {
	var id Identity
	var user []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		id.Token = string(b.Get([]byte(KeyAuthToken)))
		// bbolt values are only valid inside the transaction.
		user = append(user, b.Get([]byte(KeyUser))...)
		return nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read session store: %w", err)
	}
	if id.Token == "" {
		return Identity{}, ErrNotLoggedIn
	}
	if len(user) > 0 {
		if err := json.Unmarshal(user, &id.Profile); err != nil {
			return id, fmt.Errorf("failed to decode stored profile: %w", err)
		}
	}
	return id, nil
}
