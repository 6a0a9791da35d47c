package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/greg-hellings/omnicognitor/pkg/auth"
	"github.com/greg-hellings/omnicognitor/pkg/render"
	"github.com/greg-hellings/omnicognitor/pkg/session"
)

// auth command flags
type authFlags struct {
	email    string
	password string
	noColor  bool
}

var authOpts authFlags

func newAuthCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign up, and inspect the stored session",
	}

	c.AddCommand(newAuthSubmitCmd("signin", "Sign in with email and password", auth.SignIn))
	c.AddCommand(newAuthSubmitCmd("signup", "Create an account with email and password", auth.SignUp))
	c.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE:  runAuthStatus,
	})
	c.AddCommand(&cobra.Command{
		Use:   "signout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE:  runAuthSignOut,
	})
	return c
}

func newAuthSubmitCmd(use, short string, mode auth.Mode) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthSubmit(cmd, mode)
		},
	}
	c.Flags().StringVar(&authOpts.email, "email", "", "Account email address")
	c.Flags().StringVar(&authOpts.password, "password", "", "Account password (prompted when omitted)")
	c.Flags().BoolVar(&authOpts.noColor, "no-color", false, "Disable ANSI colors")
	return c
}

func runAuthSubmit(cmd *cobra.Command, mode auth.Mode) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	password := authOpts.password
	if password == "" {
		password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	screen := auth.NewScreen(a.identity, a.store)
	screen.SetMode(mode)
	screen.SetEmail(authOpts.email)
	screen.SetPassword(password)

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()
	submitErr := screen.Submit(ctx)

	formatter := render.NewConsoleFormatter()
	formatter.EnableColors = !authOpts.noColor
	if err := formatter.RenderAuth(screen, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to render auth screen: %w", err)
	}
	if submitErr != nil {
		return fmt.Errorf("%s failed: %w", mode, submitErr)
	}
	return nil
}

// readPassword prompts on the terminal without echo, or reads one line when
// input is not a terminal.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	sess, err := a.store.Current()
	if errors.Is(err, session.ErrNoSession) {
		fmt.Fprintln(out, "Not signed in")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	fmt.Fprintf(out, "Signed in as %s\n", sess.Email)
	if sess.UserID != "" {
		fmt.Fprintf(out, "  User ID:  %s\n", sess.UserID)
	}
	fmt.Fprintf(out, "  Token:    %s\n", session.RedactToken(sess.AccessToken))
	switch {
	case sess.ExpiresAt.IsZero():
		fmt.Fprintln(out, "  Expires:  never")
	case sess.Expired(time.Now()):
		fmt.Fprintf(out, "  Expires:  %s (expired)\n", sess.ExpiresAt.Format(time.DateTime))
	default:
		fmt.Fprintf(out, "  Expires:  %s\n", sess.ExpiresAt.Format(time.DateTime))
	}
	return nil
}

func runAuthSignOut(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.store.Clear(); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}
