package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/jsonlines/internal/core"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write table rows as JSON Lines",
		Long: `Writes one JSON object per row. Keys are column names in table order
(or --columns order); NULL is written as null.

When records go to stdout the summary is written to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")
			file, _ := cmd.Flags().GetString("file")
			columns, _ := cmd.Flags().GetString("columns")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer conn.Close(ctx)

			service, err := core.NewService(conn, a.transfer)
			if err != nil {
				return err
			}

			summary := cmd.ErrOrStderr()
			if file != "" && file != "-" {
				summary = cmd.OutOrStdout()
			}

			var result *core.TransferResult
			err = writeOutput(file, cmd.OutOrStdout(), a.transfer.BufferSize, func(w io.Writer) error {
				var xerr error
				result, xerr = service.Export(ctx, table, w, core.TransferOptions{
					Columns: core.ParseColumnSpec(columns),
				})
				return xerr
			})
			if perr := printResult(summary, result); perr != nil && err == nil {
				err = perr
			}
			return transferError(err)
		},
	}

	cmd.Flags().StringP("table", "t", "", "Source table, optionally schema-qualified")
	_ = cmd.MarkFlagRequired("table")
	cmd.Flags().StringP("file", "f", "-", "Output file (- for stdout)")
	cmd.Flags().StringP("columns", "c", "", "Comma-separated columns to export (default all)")
	addDatabaseFlag(cmd)
	return cmd
}

// writeOutput runs write against path, or stdout for "" and "-", through a
// buffer. The flush and close results are reported when write succeeds.
func writeOutput(path string, stdout io.Writer, bufSize int, write func(io.Writer) error) error {
	out, closeOut := stdout, func() error { return nil }
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		out, closeOut = f, f.Close
	}

	bw := bufio.NewWriterSize(out, bufSize)
	err := write(bw)
	if ferr := bw.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	if cerr := closeOut(); cerr != nil && err == nil {
		err = fmt.Errorf("close %s: %w", path, cerr)
	}
	return err
}
