package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shelf-go/internal/app"
	"shelf-go/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "shelf",
	Short:        "Virtual file namespaces with duplicate detection",
	SilenceUsage: true,
}

// loadConfig reads the config from the default location.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// userFlag returns the namespace the command acts on, from --user or
// SHELF_USER.
func userFlag(cmd *cobra.Command) (string, error) {
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		user = os.Getenv("SHELF_USER")
	}
	if user == "" {
		return "", errors.New("no user given (use --user or SHELF_USER)")
	}
	return user, nil
}

// withApp runs fn against a ShelfApp for one operation acting as actor.
// The operation's outcome is logged when the app closes.
func withApp(cmd *cobra.Command, operation, actor string, fn func(ctx context.Context, a *app.ShelfApp) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	op := app.NewOperation(operation, actor, time.Now())

	a, err := app.NewShelfApp(cmd.Context(), cfg, op)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx, err := a.Context(cmd.Context())
	if err != nil {
		op.Fail(err)
		return err
	}
	if err := fn(ctx, a); err != nil {
		op.Fail(err)
		return err
	}
	return nil
}

// inNamespace is withApp for commands acting inside the --user namespace.
func inNamespace(cmd *cobra.Command, operation string, fn func(ctx context.Context, a *app.ShelfApp, ns string) error) error {
	user, err := userFlag(cmd)
	if err != nil {
		return err
	}
	return withApp(cmd, operation, user, func(ctx context.Context, a *app.ShelfApp) error {
		return fn(ctx, a, user)
	})
}

// readPassphrase returns SHELF_PASSPHRASE if set, otherwise prompts on the
// terminal without echo. Piped input is read up to the first newline.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv("SHELF_PASSPHRASE"); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// unlock prompts for the passphrase when stored content is encrypted.
func unlock(a *app.ShelfApp) error {
	if !a.NeedsUnlock() {
		return nil
	}
	pass, err := readPassphrase("Passphrase: ")
	if err != nil {
		return err
	}
	return a.Unlock(pass)
}

func init() {
	rootCmd.PersistentFlags().StringP("user", "u", "", "Namespace to act in (default $SHELF_USER)")

	rootCmd.AddCommand(configCmd, dbCmd, keyCmd, userCmd, workerCmd, auditCmd)
	rootCmd.AddCommand(lsCmd, treeCmd, statCmd, mkdirCmd, uploadCmd, importCmd, downloadCmd)
	rootCmd.AddCommand(cpCmd, mvCmd, rmCmd, trashCmd)
	rootCmd.AddCommand(shareCmd, unshareCmd, unmountCmd, membersCmd, dupesCmd)
}
