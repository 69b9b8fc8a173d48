package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/auth"
	"github.com/Makepad-fr/tada/internal/ui"
)

func (a *App) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth <login|logout|status|whoami>",
		Short: "Token authentication for remote servers",
		Args: func(cmd *cobra.Command, args []string) error {
			return usagef("usage: %s auth <login|logout|status|whoami>", appName)
		},
		RunE: func(cmd *cobra.Command, args []string) error { return nil },
	}
	cmd.AddCommand(
		&cobra.Command{Use: "login", Short: "Store a token", Args: exactArgs(0, "auth login"), RunE: a.authLogin},
		&cobra.Command{Use: "logout", Short: "Forget the stored token", Args: exactArgs(0, "auth logout"), RunE: a.authLogout},
		&cobra.Command{Use: "status", Short: "Show where the token comes from", Args: exactArgs(0, "auth status"), RunE: a.authStatus},
		&cobra.Command{Use: "whoami", Short: "Decode the token locally", Args: exactArgs(0, "auth whoami"), RunE: a.authWhoAmI},
	)
	return cmd
}

func (a *App) authLogin(cmd *cobra.Command, args []string) error {
	fmt.Fprint(cmd.OutOrStdout(), "Paste your token: ")
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		return fmt.Errorf("read token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	tok, err := auth.Save(line)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if tok.ExpiresAt != nil {
		ui.OK("logged in (expires " + tok.ExpiresAt.Format(time.RFC3339) + ")")
		return nil
	}
	ui.OK("logged in")
	return nil
}

func (a *App) authLogout(cmd *cobra.Command, args []string) error {
	tok, err := auth.Load()
	if err != nil {
		return err
	}
	if tok != nil && tok.Source == auth.SourceEnv {
		ui.OK("token is provided by " + auth.EnvToken + " env var (nothing to delete)")
		return nil
	}
	if err := auth.Remove(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	ui.OK("logged out")
	return nil
}

func (a *App) authStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	tok, err := auth.Load()
	if err != nil {
		return err
	}
	if tok == nil {
		fmt.Fprintln(out, ui.C(ui.Current().Muted, "not logged in"))
		fmt.Fprintf(out, "Run: %s auth login\n", appName)
		return nil
	}
	fmt.Fprintf(out, "source: %s\n", tok.Source)
	switch {
	case tok.ExpiresAt == nil:
		fmt.Fprintln(out, "expires: (none in token)")
	case tok.Expired(time.Now()):
		fmt.Fprintf(out, "expires: %s %s\n", tok.ExpiresAt.Format(time.RFC3339), ui.C(ui.Current().Error, "(expired)"))
	default:
		fmt.Fprintf(out, "expires: %s\n", tok.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "env override: %s\n", auth.EnvToken)
	return nil
}

// whoami prints the unverified JWT claims; opaque tokens print basic info.
func (a *App) authWhoAmI(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	tok, err := auth.Load()
	if err != nil {
		return err
	}
	if tok == nil {
		return usagef("not logged in. Run: %s auth login", appName)
	}
	if p, err := auth.Payload(tok.Value); err == nil {
		fmt.Fprintln(out, "JWT payload:")
		fmt.Fprintln(out, string(p))
		return nil
	}
	fmt.Fprintln(out, "Opaque token (cannot introspect locally).")
	fmt.Fprintln(out, "source:", tok.Source)
	return nil
}
