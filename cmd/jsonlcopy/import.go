package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/jsonlines/internal/core"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load JSON Lines records into a table",
		Long: `Reads one JSON object per line and loads it into the table with COPY.
Object keys are matched to column names; missing keys become NULL and
unknown keys are ignored. With --on-error ignore, malformed lines and
values that do not convert are skipped and reported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")
			file, _ := cmd.Flags().GetString("file")
			columns, _ := cmd.Flags().GetString("columns")
			onError, _ := cmd.Flags().GetString("on-error")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			in, size, err := openInput(file)
			if err != nil {
				return err
			}
			defer in.Close()

			conn, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer conn.Close(ctx)

			service, err := core.NewService(conn, a.transfer)
			if err != nil {
				return err
			}

			result, err := service.Import(ctx, table, in, core.TransferOptions{
				Columns: core.ParseColumnSpec(columns),
				OnError: onError,
				Size:    size,
			})
			if perr := printResult(cmd.OutOrStdout(), result); perr != nil && err == nil {
				err = perr
			}
			return transferError(err)
		},
	}

	cmd.Flags().StringP("table", "t", "", "Target table, optionally schema-qualified")
	_ = cmd.MarkFlagRequired("table")
	cmd.Flags().StringP("file", "f", "-", "Input file (- for stdin)")
	cmd.Flags().StringP("columns", "c", "", "Comma-separated columns to load (default all)")
	cmd.Flags().String("on-error", "", "stop or ignore (default from TRANSFER_ON_ERROR)")
	addDatabaseFlag(cmd)
	return cmd
}
