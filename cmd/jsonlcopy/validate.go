package main

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/jsonlines/internal/core"
)

func newValidateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check JSON Lines records against column types without a database",
		Long: `Parses and converts every record exactly as import would, against the
columns given as name:type pairs, and reports the result. Nothing is
written anywhere.

Types are PostgreSQL names such as int4, bigint, numeric(12,2),
varchar(40), timestamptz, jsonb or text[].`,
		Example: `  jsonlcopy validate --columns "id:int8,price:numeric(10,2),tags:text[]" --file items.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, _ := cmd.Flags().GetString("columns")
			file, _ := cmd.Flags().GetString("file")
			onError, _ := cmd.Flags().GetString("on-error")

			m := pgtype.NewMap()
			schema, err := core.ParseSchemaSpec(spec, m)
			if err != nil {
				return err
			}
			if err := core.BindInputs(schema, m); err != nil {
				return err
			}

			in, size, err := openInput(file)
			if err != nil {
				return err
			}
			defer in.Close()

			service, err := core.NewService(nil, a.transfer)
			if err != nil {
				return err
			}

			result, err := service.ImportRows(cmd.Context(), in, schema, core.TransferOptions{
				OnError: onError,
				Size:    size,
			}, nil)
			if perr := printResult(cmd.OutOrStdout(), result); perr != nil && err == nil {
				err = perr
			}
			return transferError(err)
		},
	}

	cmd.Flags().StringP("columns", "c", "", "Column definitions as name:type,...")
	_ = cmd.MarkFlagRequired("columns")
	cmd.Flags().StringP("file", "f", "-", "Input file (- for stdin)")
	cmd.Flags().String("on-error", "", "stop or ignore (default from TRANSFER_ON_ERROR)")
	return cmd
}
