// Package shell is the interactive terminal front end of the client. Each
// command drives the app the way a screen would and prints the resulting
// frame.
package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gigmarket/gigmarket/internal/app"
	"github.com/gigmarket/gigmarket/internal/backend"
	"github.com/gigmarket/gigmarket/internal/gate"
	"github.com/gigmarket/gigmarket/internal/models"
)

// App is the part of the root controller the shell drives.
type App interface {
	Render() app.Frame
	Navigate(view string, data any)
	HandleBack(fallback string)
	RefreshProfile(ctx context.Context)
	ShowGuide()
	HideGuide()
	DismissToast(id string)
	CompleteProfile(ctx context.Context, role models.Role, phone, fullName string) error
	SignOut(ctx context.Context) error
}

// Auth is the part of the backend client the shell calls directly.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password string) (*models.Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, password string) error
}

// Shell reads commands from In and writes frames to Out.
type Shell struct {
	App  App
	Auth Auth
	In   io.Reader
	Out  io.Writer
	// RecoveryURL is where password recovery links point.
	RecoveryURL string
}

const usage = `Available commands:
  help                         show this text
  show                         print the current screen
  go <view> [json]             navigate to view with optional payload
  back [fallback]              go back, or show fallback (default home)
  upgrade                      open the subscription screen
  signup <email> <password>    create an account
  signin <email> <password>    sign in
  signout                      sign out
  reset <email>                mail a password recovery link
  password <new>               set a new password
  complete <role> <phone> [full name]
                               finish the profile (role client|worker)
  refresh                      refetch the profile
  guide | hide-guide           toggle the onboarding guide
  dismiss <toast id>           dismiss a notification
  exit                         leave`

// Run loops until exit, end of input or ctx cancellation.
func (s *Shell) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.In)
	s.printFrame()

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(s.Out, "gigmarket> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		args := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			fmt.Fprintln(s.Out, "Bye")
			return nil
		}
		if err := s.exec(ctx, args); err != nil {
			fmt.Fprintf(s.Out, "error: %v\n", err)
		}
	}
}

func (s *Shell) exec(ctx context.Context, args []string) error {
	switch args[0] {
	case "help":
		fmt.Fprintln(s.Out, usage)
		return nil
	case "show":
	case "go":
		if len(args) < 2 {
			return errors.New("usage: go <view> [json]")
		}
		var data any
		if len(args) > 2 {
			if err := json.Unmarshal([]byte(strings.Join(args[2:], " ")), &data); err != nil {
				return fmt.Errorf("payload: %w", err)
			}
		}
		s.App.Navigate(args[1], data)
	case "back":
		fallback := models.ViewHome
		if len(args) > 1 {
			fallback = args[1]
		}
		s.App.HandleBack(fallback)
	case "upgrade":
		s.App.Navigate(models.ViewSubscription, nil)
	case "signup":
		if len(args) != 3 {
			return errors.New("usage: signup <email> <password>")
		}
		_, err := s.Auth.SignUp(ctx, args[1], args[2])
		if errors.Is(err, backend.ErrConfirmationPending) {
			fmt.Fprintln(s.Out, "Check your inbox to confirm the address, then sign in.")
			return nil
		}
		if err != nil {
			return err
		}
	case "signin":
		if len(args) != 3 {
			return errors.New("usage: signin <email> <password>")
		}
		if _, err := s.Auth.SignIn(ctx, args[1], args[2]); err != nil {
			return err
		}
	case "signout":
		if err := s.App.SignOut(ctx); err != nil {
			return err
		}
	case "reset":
		if len(args) != 2 {
			return errors.New("usage: reset <email>")
		}
		if err := s.Auth.ResetPasswordForEmail(ctx, args[1], s.RecoveryURL); err != nil {
			return err
		}
		fmt.Fprintln(s.Out, "Recovery link sent.")
	case "password":
		if len(args) != 2 {
			return errors.New("usage: password <new>")
		}
		if err := s.Auth.UpdatePassword(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(s.Out, "Password updated.")
	case "complete":
		if len(args) < 3 {
			return errors.New("usage: complete <role> <phone> [full name]")
		}
		name := strings.Join(args[3:], " ")
		if err := s.App.CompleteProfile(ctx, models.Role(args[1]), args[2], name); err != nil {
			return err
		}
	case "refresh":
		s.App.RefreshProfile(ctx)
	case "guide":
		s.App.ShowGuide()
	case "hide-guide":
		s.App.HideGuide()
	case "dismiss":
		if len(args) != 2 {
			return errors.New("usage: dismiss <toast id>")
		}
		s.App.DismissToast(args[1])
	default:
		fmt.Fprintln(s.Out, "Unknown command. Type 'help' for a list of commands.")
		return nil
	}
	s.printFrame()
	return nil
}

func (s *Shell) printFrame() {
	f := s.App.Render()
	fmt.Fprintf(s.Out, "[%s] %s", f.Screen.Shell, f.Screen.View)
	if f.Screen.Data != nil {
		if b, err := json.Marshal(f.Screen.Data); err == nil {
			fmt.Fprintf(s.Out, " %s", b)
		}
	}
	fmt.Fprintln(s.Out)

	if p := f.Profile; p != nil && f.Screen.Shell == gate.ShellMain {
		verified := ""
		if p.IsVerified {
			verified = ", verified"
		}
		fmt.Fprintf(s.Out, "  %s (%s, %s tier, %d used%s)\n", p.FullName, p.Role, p.SubscriptionTier, p.UsageCount, verified)
	}
	if f.Guide {
		fmt.Fprintln(s.Out, "  guide: open")
	}
	for _, t := range f.Toasts {
		fmt.Fprintf(s.Out, "  [%s] %s (%s)\n", t.Kind, t.Message, t.ID)
	}
}
