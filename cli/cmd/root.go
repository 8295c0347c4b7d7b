// Package cmd implements the chat client's commands.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/anshu-sharma0/chatmessage/internal/chatapi"
	"github.com/anshu-sharma0/chatmessage/internal/config"
	"github.com/anshu-sharma0/chatmessage/internal/identity"
)

var version = "dev"

// errNotLoggedIn is the message printed by commands that need a stored token.
var errNotLoggedIn = errors.New("not logged in, run `login`")

// env is the state shared by every command, set up before the command runs.
type env struct {
	cfg   *config.Config
	store *identity.Store
}

func (e *env) api(token string) *chatapi.Client {
	opts := []chatapi.Option{chatapi.WithTimeout(e.cfg.HTTPTimeout)}
	if token != "" {
		opts = append(opts, chatapi.WithToken(token))
	}
	return chatapi.NewClient(e.cfg.APIURL, opts...)
}

// requireIdentity resolves the stored identity, failing when nobody is logged in.
func (e *env) requireIdentity() (identity.Identity, error) {
	id, err := e.store.Resolve()
	if errors.Is(err, identity.ErrNotLoggedIn) {
		return identity.Identity{}, errNotLoggedIn
	}
	return id, err
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "chatmessage",
		Short:         "Terminal chat client",
		Long:          `chatmessage signs you in to the chat service and opens one-to-one conversations in the terminal.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e.cfg = config.Load()
			if path, _ := cmd.Flags().GetString("session-file"); path != "" {
				e.cfg.SessionFile = path
			}
			store, err := identity.Open(e.cfg.SessionFile)
			if err != nil {
				return err
			}
			e.store = store
			return nil
		},
		// Covers commands without a RunE, such as help.
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return e.close()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().String("session-file", "", "session store path (default from CHAT_SESSION_FILE)")
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	root.AddCommand(
		newLoginCmd(e),
		newSignupCmd(e),
		newLogoutCmd(e),
		newWhoamiCmd(e),
		newUsersCmd(e),
		newChatCmd(e),
	)
	// Cobra skips post-run hooks when RunE fails, so the store is released here instead.
	for _, c := range root.Commands() {
		if c.RunE != nil {
			c.RunE = e.closing(c.RunE)
		}
	}
	return root
}

// closing wraps run so the session store is closed however the command ends.
func (e *env) closing(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := e.close(); err == nil {
				err = cerr
			}
		}()
		return run(cmd, args)
	}
}

func (e *env) close() error {
	if e.store == nil {
		return nil
	}
	err := e.store.Close()
	e.store = nil
	return err
}

// Execute runs the client and exits non-zero on failure.
func Execute() {
	defer glog.Flush()
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		glog.Flush()
		os.Exit(1)
	}
}
