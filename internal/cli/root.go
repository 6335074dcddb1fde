package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/denismitr/tenants/internal/batch"
	"github.com/logrusorgru/aurora/v3"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	getenv func(string) string

	configPath         string
	verbose            bool
	noColor            bool
	db                 string
	step               string
	version            string
	ignoreEmptyTenants bool
}

type task func(app *App, ctx context.Context) (*batch.Report, error)

// NewRootCmd builds the command tree, getenv supplies DB, STEP, VERSION
// and IGNORE_EMPTY_TENANTS unless a flag of the same name is given
func NewRootCmd(getenv func(string) string) *cobra.Command {
	ro := &rootOptions{getenv: getenv}

	cmd := &cobra.Command{
		Use:           "tenants",
		Short:         "Run database tasks for every tenant",
		Long:          "tenants: create, drop, migrate, seed and dump the databases of every tenant of the application",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       rootCmdExample,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&ro.configPath, "config", DefaultConfigFile, "path to the configuration file")
	pf.BoolVarP(&ro.verbose, "verbose", "v", false, "print SQL and debug output")
	pf.BoolVar(&ro.noColor, "no-color", false, "disable colored output")
	pf.StringVar(&ro.db, "db", "", "comma separated list of tenants, overrides DB and the configured list")
	pf.StringVar(&ro.step, "step", "", "number of migrations to apply or roll back, overrides STEP")
	pf.StringVar(&ro.version, "version", "", "migration version for migrate:up, migrate:down and migrate:redo, overrides VERSION")
	pf.BoolVar(&ro.ignoreEmptyTenants, "ignore-empty-tenants", false, "do not warn when there are no tenants, overrides IGNORE_EMPTY_TENANTS")

	cmd.AddCommand(
		ro.taskCmd("create", "Create the database of every tenant", (*App).Create),
		ro.taskCmd("drop", "Drop the database of every tenant", (*App).Drop),
		ro.taskCmd("migrate", "Run pending migrations, STEP limits how many", (*App).Migrate),
		ro.taskCmd("seed", "Load the seeds file into every tenant", (*App).Seed),
		ro.taskCmd("rollback", "Roll back STEP migrations, one by default", (*App).Rollback),
		ro.taskCmd("migrate:up", "Run the migration given with VERSION", (*App).MigrateUp),
		ro.taskCmd("migrate:down", "Roll back the migration given with VERSION", (*App).MigrateDown),
		ro.taskCmd("migrate:redo", "Roll back and run again VERSION or the latest STEP migrations", (*App).Redo),
		ro.schemaDumpCmd(),
		ro.statusCmd(),
		ro.initCmd(),
		ro.newMigrationCmd(),
	)

	return cmd
}

const rootCmdExample = `  # Create a configuration file
  tenants init

  # Create and migrate every configured tenant
  tenants create && tenants migrate

  # Migrate two tenants only
  DB=acme,globex tenants migrate

  # Roll back the latest two migrations
  tenants rollback --step 2

  # Run a single migration
  VERSION=1596897167 tenants migrate:up`

// inputs reads the environment and lets explicitly given flags win
func (ro *rootOptions) inputs(cmd *cobra.Command) Inputs {
	in := InputsFromEnv(ro.getenv)

	flags := cmd.Flags()
	if flags.Changed("db") {
		in.DB = ro.db
	}

	if flags.Changed("step") {
		in.Step = ro.step
	}

	if flags.Changed("version") {
		in.Version = ro.version
	}

	if flags.Changed("ignore-empty-tenants") {
		in.IgnoreEmptyTenants = ro.ignoreEmptyTenants
	}

	return in
}

func (ro *rootOptions) app(cmd *cobra.Command) (*App, CloserFunc, error) {
	cfg, err := LoadConfig(ro.configPath)
	if err != nil {
		return nil, nil, err
	}

	out := Output{
		Printer: log.New(cmd.OutOrStdout(), "", 0),
		Verbose: ro.verbose,
		NoColor: ro.noColor,
	}

	return New(cfg, ro.inputs(cmd), out)
}

func (ro *rootOptions) withApp(cmd *cobra.Command, f func(app *App) error) (err error) {
	app, closer, err := ro.app(cmd)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := closer(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return f(app)
}

func (ro *rootOptions) taskCmd(use, short string, t task) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ro.withApp(cmd, func(app *App) error {
				report, err := t(app, cmd.Context())
				if err != nil {
					return err
				}

				ro.printReport(cmd.OutOrStdout(), report)

				return nil
			})
		},
	}
}

func (ro *rootOptions) schemaDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "schema:dump",
		Aliases: []string{"structure:dump"},
		Short:   "Dump the structure of the reference tenant",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ro.withApp(cmd, func(app *App) error {
				return app.DumpSchema(cmd.Context())
			})
		},
	}
}

func (ro *rootOptions) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print applied and pending migrations of every tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ro.withApp(cmd, func(app *App) error {
				statuses, report, err := app.Status(cmd.Context())
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				for _, s := range statuses {
					fmt.Fprintf(w, "%s: %d applied, %d pending\n", s.Tenant, len(s.Applied), len(s.Pending))
					for _, key := range s.Pending.Keys() {
						fmt.Fprintf(w, "  pending %s\n", key)
					}
				}

				for _, f := range report.Failures() {
					fmt.Fprintf(w, "%s: %s\n", f.Tenant, f.Err)
				}

				return nil
			})
		},
	}
}

func (ro *rootOptions) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file stub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := InitCfg(ro.configPath); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), ro.colorize(aurora.Green("tenants: ")), "configuration written to", ro.configPath)

			return nil
		},
	}
}

func (ro *rootOptions) newMigrationCmd() *cobra.Command {
	var noRollback bool

	cmd := &cobra.Command{
		Use:   "migration:new NAME",
		Short: "Create empty migrate and rollback files in the migrations folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withApp(cmd, func(app *App) error {
				m, err := app.CreateMigration(strings.Join(args, "_"), !noRollback)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), ro.colorize(aurora.Green("tenants: ")), "created migration", m.Key)

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noRollback, "no-rollback", false, "do not create the rollback file")

	return cmd
}

func (ro *rootOptions) printReport(w io.Writer, r *batch.Report) {
	if r == nil || r.Attempted() == 0 {
		return
	}

	fmt.Fprintf(
		w,
		"%v %d succeeded, %d skipped\n",
		ro.colorize(aurora.Green("tenants:")),
		len(r.Succeeded()),
		len(r.Failures()),
	)
}

func (ro *rootOptions) colorize(v aurora.Value) interface{} {
	if ro.noColor {
		return v.Value()
	}

	return v
}
