// Package conversation implements the client-side conversation session: the user directory,
// conversation resolution, the in-memory timeline and the realtime glue between them.
package conversation

import (
	"context"

	"github.com/golang/glog"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

// UserLister lists the users available for conversation.
type UserLister interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// FallbackUsers returns the sample directory served when the backend is unreachable.
func FallbackUsers() []domain.User {
	return domain.DemoUsers()
}

// Directory lists users, degrading to sample data on transport failure.
type Directory struct {
	api UserLister
}

// NewDirectory creates a directory backed by api.
func NewDirectory(api UserLister) *Directory {
	return &Directory{api: api}
}

// List returns the backend's users, or FallbackUsers when the backend cannot be reached.
func (d *Directory) List(ctx context.Context) []domain.User {
	users, err := d.api.ListUsers(ctx)
	if err != nil {
		glog.Warningf("directory: %v; serving sample users", err)
		return FallbackUsers()
	}
	return users
}
