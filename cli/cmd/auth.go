package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
	"github.com/anshu-sharma0/chatmessage/internal/identity"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// authForm holds the fields of the login and signup forms.
type authForm struct {
	Name     string
	Email    string
	Password string
	Confirm  string
}

// validate checks the form the same way for both flows; name and confirmation are only
// required on signup.
func (f authForm) validate(signup bool) error {
	var errs []error
	if signup && strings.TrimSpace(f.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	switch {
	case f.Email == "":
		errs = append(errs, errors.New("email is required"))
	case !emailPattern.MatchString(f.Email):
		errs = append(errs, errors.New("please enter a valid email"))
	}
	if f.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}
	if signup {
		switch {
		case f.Confirm == "":
			errs = append(errs, errors.New("please confirm your password"))
		case f.Password != f.Confirm:
			errs = append(errs, errors.New("passwords do not match"))
		}
	}
	return errors.Join(errs...)
}

// prompter reads missing form fields from the command's input.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func newPrompter(cmd *cobra.Command) *prompter {
	p := &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout(), fd: -1}
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *prompter) secret(label string) (string, error) {
	if !p.tty {
		return p.line(label)
	}
	fmt.Fprintf(p.out, "%s: ", label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return string(b), nil
}

// fill prompts for every empty field the flow needs.
func (p *prompter) fill(f *authForm, signup bool) error {
	type field struct {
		label  string
		dst    *string
		secret bool
	}
	fields := []field{{"Email", &f.Email, false}, {"Password", &f.Password, true}}
	if signup {
		fields = append([]field{{"Name", &f.Name, false}}, fields...)
		fields = append(fields, field{"Confirm password", &f.Confirm, true})
	}
	for _, fl := range fields {
		if *fl.dst != "" {
			continue
		}
		var err error
		if fl.secret {
			*fl.dst, err = p.secret(fl.label)
		} else {
			*fl.dst, err = p.line(fl.label)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// alreadyLoggedIn reports the current user when a token is stored.
func alreadyLoggedIn(cmd *cobra.Command, e *env) (bool, error) {
	id, err := e.store.Resolve()
	if errors.Is(err, identity.ErrNotLoggedIn) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Already logged in as %s. Run `logout` first to switch accounts.\n", displayName(id))
	return true, nil
}

func displayName(id identity.Identity) string {
	switch {
	case id.Profile.Name != "" && id.Profile.Email != "":
		return fmt.Sprintf("%s <%s>", id.Profile.Name, id.Profile.Email)
	case id.Profile.Name != "":
		return id.Profile.Name
	case id.Profile.Email != "":
		return id.Profile.Email
	}
	return "unknown user"
}

func newLoginCmd(e *env) *cobra.Command {
	var form authForm
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ok, err := alreadyLoggedIn(cmd, e); ok || err != nil {
				return err
			}
			if err := newPrompter(cmd).fill(&form, false); err != nil {
				return err
			}
			if err := form.validate(false); err != nil {
				return err
			}

			data, err := e.api("").Login(cmd.Context(), &domain.LoginRequest{
				Email:    form.Email,
				Password: form.Password,
			})
			if err != nil {
				return err
			}
			if err := e.store.Save(data.Token, data.User); err != nil {
				return err
			}

			id, err := e.store.Resolve()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Login successful! Welcome, %s.\n", displayName(id))
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func newSignupCmd(e *env) *cobra.Command {
	var form authForm
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ok, err := alreadyLoggedIn(cmd, e); ok || err != nil {
				return err
			}
			if err := newPrompter(cmd).fill(&form, true); err != nil {
				return err
			}
			if err := form.validate(true); err != nil {
				return err
			}

			msg, err := e.api("").Signup(cmd.Context(), &domain.SignupRequest{
				Name:     strings.TrimSpace(form.Name),
				Email:    form.Email,
				Password: form.Password,
			})
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "Account created successfully!"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Run `login` to sign in.\n", msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Name, "name", "", "display name")
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&form.Confirm, "confirm", "", "password confirmation (prompted when omitted)")
	return cmd
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := e.requireIdentity()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s)\n", displayName(id), id.UserID())
			return nil
		},
	}
}
