package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/TechXTT/tormsql/pkg/session"
)

// NewQueryCmd builds the `query` command. It runs in a read-only session.
func NewQueryCmd(opts *options) *cobra.Command {
	var fetchSize int
	cmd := &cobra.Command{
		Use:   "query SQL [PARAMS...]",
		Short: "Run a read-only query and print the rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := opts.open()
			if err != nil {
				return err
			}
			defer conn.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			header := false
			err = conn.ReadOnly(cmd.Context(), func(s session.Session) error {
				if fetchSize > 0 {
					if err := s.Configure(session.FetchSize(fetchSize)); err != nil {
						return err
					}
				}
				return session.Foreach(cmd.Context(), s, args[0], func(r *session.Row) error {
					if !header {
						fmt.Fprintln(w, strings.Join(r.Columns(), "\t"))
						header = true
					}
					cells := make([]string, len(r.Columns()))
					for i := range cells {
						v, err := r.AnyAt(i + 1)
						if err != nil {
							return err
						}
						cells[i] = formatCell(v)
					}
					fmt.Fprintln(w, strings.Join(cells, "\t"))
					return nil
				}, params(args[1:])...)
			})
			if err != nil {
				return err
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&fetchSize, "fetch-size", 0, "fetch size hint")
	return cmd
}

// NewExecCmd builds the `exec` command.
func NewExecCmd(opts *options) *cobra.Command {
	var returningKey string
	cmd := &cobra.Command{
		Use:   "exec SQL [PARAMS...]",
		Short: "Run a statement and print the affected row count or generated key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := opts.open()
			if err != nil {
				return err
			}
			defer conn.Close()

			return conn.AutoCommit(cmd.Context(), func(s session.Session) error {
				if returningKey != "" {
					key, err := s.UpdateAndReturnSpecifiedGeneratedKey(cmd.Context(), args[0], session.KeyName(returningKey), params(args[1:])...)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), key)
					return nil
				}
				n, err := s.Update(cmd.Context(), args[0], params(args[1:])...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) affected\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&returningKey, "returning-key", "", "print the generated key of this column")
	return cmd
}

func params(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return cast.ToString(v)
}
