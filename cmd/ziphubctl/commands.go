package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/ziphub/internal/config"
	"github.com/sakif/ziphub/internal/logging"
	"github.com/sakif/ziphub/internal/model"
	"github.com/sakif/ziphub/internal/server"
	"github.com/sakif/ziphub/internal/service"
)

// operator is the actor every ziphubctl command runs as.
var operator = model.Account{ID: "ziphubctl", Username: "ziphubctl", Role: model.RoleAdmin}

type globalFlags struct {
	configPath string
	dataDir    string
	backend    string
	logLevel   string
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:          "ziphubctl",
		Short:        "Administer a ZIPHUB data directory",
		SilenceUsage: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file (default $CONFIG_FILE)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "override data_dir from the config")
	pf.StringVar(&flags.backend, "store", "", "override store_backend (file, memory, sqlite, badger)")
	pf.StringVar(&flags.logLevel, "log-level", "", "override log_level")

	// run opens the store, prepares it and hands the services to fn. The
	// store is closed when fn returns.
	run := func(fn action) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(flags, getenv, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			svc, err := server.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Store.Close(); err != nil {
					logger.Error("closing store", slog.String("error", err.Error()))
				}
			}()
			ctx := cmd.Context()
			if err := svc.Prepare(ctx, logger); err != nil {
				return err
			}
			return fn(ctx, svc, args, cmd.OutOrStdout())
		}
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "bootstrap",
			Short: "Create missing collections and the creator account, then sweep orphans",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, svc *server.Services, args []string, out io.Writer) error {
				id, _, err := svc.Identity.CreatorID(ctx)
				if err != nil {
					return err
				}
				return printJSON(out, map[string]any{"creatorId": id})
			}),
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print collection totals",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, svc *server.Services, args []string, out io.Writer) error {
				st, err := svc.Admin.Stats(ctx, operator)
				if err != nil {
					return err
				}
				return printJSON(out, st)
			}),
		},
		&cobra.Command{
			Use:   "reports",
			Short: "List every report",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, svc *server.Services, args []string, out io.Writer) error {
				reports, err := svc.Admin.ListReports(ctx, operator)
				if err != nil {
					return err
				}
				return printJSON(out, reports)
			}),
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Remove likes, comments and reports whose file no longer exists",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, svc *server.Services, args []string, out io.Writer) error {
				res, err := svc.Content.Sweep(ctx)
				if err != nil {
					return err
				}
				return printJSON(out, res)
			}),
		},
		&cobra.Command{
			Use:   "approve <developer-id>",
			Short: "Approve a pending developer",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, svc *server.Services, args []string, out io.Writer) error {
				if err := svc.Admin.ApproveDeveloper(ctx, operator, args[0]); err != nil {
					return err
				}
				return printJSON(out, map[string]any{"approved": args[0]})
			}),
		},
		&cobra.Command{
			Use:   "verify <developer-id>",
			Short: "Grant an admin verification badge",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, svc *server.Services, args []string, out io.Writer) error {
				if err := svc.Admin.VerifyDeveloper(ctx, operator, args[0]); err != nil {
					return err
				}
				return printJSON(out, map[string]any{"verified": args[0]})
			}),
		},
		&cobra.Command{
			Use:   "delete-file <file-id>",
			Short: "Delete a file and everything attached to it",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, svc *server.Services, args []string, out io.Writer) error {
				res, err := svc.Admin.DeleteFile(ctx, operator, args[0])
				if err != nil {
					return err
				}
				return printJSON(out, res)
			}),
		},
		newCreateVerifiedCmd(run),
	)
	return rootCmd
}

// action is the body of a command, run against prepared services.
type action func(ctx context.Context, svc *server.Services, args []string, out io.Writer) error

type runner func(fn action) func(*cobra.Command, []string) error

func newCreateVerifiedCmd(run runner) *cobra.Command {
	boost := service.DefaultCreateVerifiedBoost
	cmd := &cobra.Command{
		Use:   "create-verified <username> <password>",
		Short: "Create an approved, verified developer account",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, svc *server.Services, args []string, out io.Writer) error {
			account, err := svc.Admin.CreateVerifiedAccount(ctx, operator, args[0], args[1], boost)
			if err != nil {
				return err
			}
			return printJSON(out, account)
		}),
	}
	cmd.Flags().IntVar(&boost, "boost", boost, "follower count boost")
	return cmd
}

func loadConfig(flags globalFlags, getenv func(string) string, stderr io.Writer) (*config.Config, *slog.Logger, error) {
	var args []string
	if flags.configPath != "" {
		args = []string{"-config", flags.configPath}
	}
	cfg, err := config.Load(args, getenv)
	if err != nil {
		return nil, nil, err
	}
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.backend != "" {
		cfg.StoreBackend = flags.backend
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.NewWriter(stderr, level, true), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
