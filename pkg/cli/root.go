package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	db "github.com/TechXTT/tormsql"
	"github.com/TechXTT/tormsql/pkg/config"
)

func version() string {
	return "v0.6.0"
}

// options are the persistent flags shared by every command.
type options struct {
	envFile string
	driver  string
	dsn     string
}

// load builds the config with flags taking precedence over the environment
// and installs the configured logger globally.
func (o *options) load() (*config.Config, error) {
	var files []string
	if o.envFile != "" {
		files = append(files, o.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if o.driver != "" {
		cfg.Driver = o.driver
	}
	if o.dsn != "" {
		cfg.DSN = o.dsn
	}
	log, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return cfg, nil
}

// open loads the config and connects.
func (o *options) open() (*config.Config, *db.DB, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, conn, nil
}

// NewVersionCmd builds the `version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version())
		},
	}
}

// NewRootCmd builds the top-level `torm` command.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "torm",
		Short: "TORM: sessions, statements and migrations over database/sql",
		Long: `TORM runs SQL through sessions that resolve generated keys and log
failed statements.

Examples:
  torm query "select id, email from users where id = $1" 42
  torm exec --returning-key id "insert into users(email) values ($1)" a@b.c
  torm migrate up --dir migrations`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "env file to load instead of .env")
	root.PersistentFlags().StringVar(&opts.driver, "driver", "", "database driver (postgres, mysql, sqlite)")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "data source name, overrides DATABASE_URL")

	root.AddCommand(NewQueryCmd(opts))
	root.AddCommand(NewExecCmd(opts))
	root.AddCommand(NewMigrateCmd(opts))
	root.AddCommand(NewVersionCmd())
	return root
}
