package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/jsonlines/internal/config"
	"github.com/JonMunkholm/jsonlines/internal/core"
	"github.com/JonMunkholm/jsonlines/internal/logging"
)

// app holds state shared by every subcommand once the root pre-run is done.
type app struct {
	transfer config.TransferConfig
	logCfg   config.LoggingConfig
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "jsonlcopy",
		Short:         "Copy JSON Lines data to and from PostgreSQL tables",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
			} else {
				// Optional; a missing .env is not an error.
				_ = godotenv.Load()
			}

			tc, lc, err := config.LoadTool()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				lc.Level, _ = cmd.Flags().GetString("log-level")
			}
			a.transfer, a.logCfg = tc, lc

			// stdout may carry exported records, so logs go to stderr.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), lc.Level, lc.Format))
			return nil
		},
	}

	root.PersistentFlags().String("env-file", "", "Load environment variables from this file (default .env when present)")
	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")

	root.AddCommand(
		newImportCmd(a),
		newExportCmd(a),
		newValidateCmd(a),
	)
	return root
}

// connect opens a single connection using --database-url or DATABASE_URL.
func connect(ctx context.Context, cmd *cobra.Command) (*pgx.Conn, error) {
	dsn, _ := cmd.Flags().GetString("database-url")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		dsn = os.Getenv("DB_URL")
	}
	if dsn == "" {
		return nil, errors.New("no database: set --database-url or DATABASE_URL")
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return conn, nil
}

func addDatabaseFlag(cmd *cobra.Command) {
	cmd.Flags().String("database-url", "", "PostgreSQL connection string (default $DATABASE_URL)")
}

// openInput returns stdin for "" or "-", otherwise the named file.
func openInput(path string) (io.ReadCloser, int64, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), 0, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return f, size, nil
}

// printResult writes the transfer summary as indented JSON.
func printResult(w io.Writer, result *core.TransferResult) error {
	if result == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// transferError prefixes err with the user-facing message the HTTP API
// would return for it.
func transferError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s\n%w", core.FormatUserError(err), err)
}
