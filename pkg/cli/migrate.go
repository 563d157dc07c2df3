package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TechXTT/tormsql/pkg/migrate"
)

func NewMigrateCmd(opts *options) *cobra.Command {
	var migrations string

	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := args[0]
			cfg, conn, err := opts.open()
			if err != nil {
				return err
			}
			defer conn.Close()

			dir := cfg.MigrationsDir
			if cmd.Flags().Changed("dir") {
				dir = migrations
			}
			mgr, err := migrate.NewManager(conn, dir, migrate.WithPlaceholder(migrate.PlaceholderFor(conn.Attributes.DriverName)))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			switch action {
			case "up":
				return mgr.Up(ctx)
			case "down":
				return mgr.Down(ctx)
			case "status":
				status, err := mgr.Status(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
				for _, st := range status {
					fmt.Fprintf(w, "%04d\t%s\t%t\n", st.Version, st.Name, st.Applied)
				}
				return w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&migrations, "dir", "migrations", "Migrations directory")
	return cmd
}
