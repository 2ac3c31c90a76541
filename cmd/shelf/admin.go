package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"shelf-go/internal/app"
	"shelf-go/internal/config"
)

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		fmt.Println("Run `shelf db migrate` next.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("# %s\n\n", defaults.ConfigPath)
		if cfg.Storage.S3SecretAccessKey != "" {
			cfg.Storage.S3SecretAccessKey = "********"
		}
		if cfg.Queue.RedisPassword != "" {
			cfg.Queue.RedisPassword = "********"
		}
		return (&config.Manager{}).Write(os.Stdout, cfg)
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the metadata database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := app.Migrate(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Database %s\n", st)
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := app.DatabaseStatus(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Database %s\n", st)
		return nil
	},
}

// key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage encryption keys",
}

var keySetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate the key pair for encrypted storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if os.Getenv("SHELF_PASSPHRASE") == "" {
			again, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if again != pass {
				return fmt.Errorf("passphrases do not match")
			}
		}
		if err := app.SetupKeys(cfg, pass); err != nil {
			return err
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users and their namespaces",
}

// parseQuota reads a byte count or "unlimited".
func parseQuota(s string) (sql.NullInt64, error) {
	if s == "" || s == "unlimited" {
		return sql.NullInt64{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return sql.NullInt64{}, fmt.Errorf("invalid quota %q: want bytes or \"unlimited\"", s)
	}
	return sql.NullInt64{Int64: n, Valid: true}, nil
}

func formatQuota(q sql.NullInt64) string {
	if !q.Valid {
		return "unlimited"
	}
	return strconv.FormatInt(q.Int64, 10)
}

var userCreateCmd = &cobra.Command{
	Use:   "create USERNAME",
	Short: "Create a user with an empty namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("quota")
		quota, err := parseQuota(raw)
		if err != nil {
			return err
		}
		return withApp(cmd, "CreateUser", "", func(ctx context.Context, a *app.ShelfApp) error {
			u, err := a.Service().CreateUser(ctx, args[0], quota)
			if err != nil {
				return err
			}
			fmt.Printf("Created user %s (quota %s)\n", u.Username, formatQuota(quota))
			return nil
		})
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete USERNAME",
	Short: "Delete a user and everything in their namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "DeleteUser", "", func(ctx context.Context, a *app.ShelfApp) error {
			if err := a.Service().DeleteUser(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted user %s\n", args[0])
			return nil
		})
	},
}

var userQuotaCmd = &cobra.Command{
	Use:   "quota USERNAME BYTES|unlimited",
	Short: "Set a user's storage quota",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quota, err := parseQuota(args[1])
		if err != nil {
			return err
		}
		return withApp(cmd, "SetQuota", "", func(ctx context.Context, a *app.ShelfApp) error {
			return a.Service().SetQuota(ctx, args[0], quota)
		})
	},
}

var userUsageCmd = &cobra.Command{
	Use:   "usage USERNAME",
	Short: "Show a user's storage usage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Usage", "", func(ctx context.Context, a *app.ShelfApp) error {
			u, err := a.Service().Usage(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("User:      %s\n", u.Username)
			fmt.Printf("Used:      %d\n", u.UsedBytes)
			fmt.Printf("Quota:     %s\n", formatQuota(u.Quota))
			if avail := u.Available(); avail >= 0 {
				fmt.Printf("Available: %d\n", avail)
			}
			return nil
		})
	},
}

// audit command
var auditCmd = &cobra.Command{
	Use:   "audit [USERNAME]",
	Short: "Show recent audit entries of a user",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		var username string
		if len(args) > 0 {
			username = args[0]
		} else {
			u, err := userFlag(cmd)
			if err != nil {
				return err
			}
			username = u
		}

		return withApp(cmd, "AuditLog", "", func(ctx context.Context, a *app.ShelfApp) error {
			trails, err := a.Service().AuditLog(ctx, username, limit)
			if err != nil {
				return err
			}
			if len(trails) == 0 {
				fmt.Println("No audit entries.")
				return nil
			}
			for _, tr := range trails {
				fmt.Printf("%s  %-14s", tr.CreatedAt.Format("2006-01-02 15:04:05"), tr.Action)
				for _, e := range tr.Entities {
					label := e.Name
					if e.Path != "" {
						label = e.Path
					}
					fmt.Printf("  %s:%s", e.Type, label)
				}
				fmt.Println()
			}
			return nil
		})
	},
}

// worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run background jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withApp(cmd, "Worker", "", func(_ context.Context, a *app.ShelfApp) error {
			if err := unlock(a); err != nil {
				return err
			}
			return a.RunWorker(ctx)
		})
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configListCmd)
	dbCmd.AddCommand(dbMigrateCmd, dbStatusCmd)
	keyCmd.AddCommand(keySetupCmd)

	userCmd.AddCommand(userCreateCmd, userDeleteCmd, userQuotaCmd, userUsageCmd)
	userCreateCmd.Flags().String("quota", "unlimited", "Storage quota in bytes")

	auditCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
}
