package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/erp/returns/internal/infrastructure/config"
	"github.com/erp/returns/internal/infrastructure/logger"
	"github.com/erp/returns/internal/infrastructure/migration"
	"github.com/erp/returns/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("usage")

// command is one migrate subcommand. Offline commands never open the database.
type command struct {
	offline bool
	run     func(env *runEnv, args []string) error
}

type runEnv struct {
	log      *zap.Logger
	source   fs.FS
	dir      string
	migrator *migration.Migrator
}

var commands = map[string]command{
	"up":      {run: func(e *runEnv, _ []string) error { return e.migrator.Up() }},
	"down":    {run: func(e *runEnv, _ []string) error { return e.migrator.Down() }},
	"step":    {run: runStep},
	"goto":    {run: runGoTo},
	"force":   {run: runForce},
	"version": {run: runStatus},
	"status":  {run: runStatus},
	"create":  {offline: true, run: runCreate},
	"list":    {offline: true, run: runList},
}

func main() {
	migrationsPath := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	env := &runEnv{log: log, source: migrations.FS, dir: defaultMigrationsPath}
	if *migrationsPath != "" {
		env.source = os.DirFS(*migrationsPath)
		env.dir = *migrationsPath
	}

	err = execute(env, cmd, args[1:])
	_ = logger.Sync(log)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	case err != nil:
		log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func execute(env *runEnv, cmd command, args []string) error {
	if cmd.offline {
		return cmd.run(env, args)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	env.migrator, err = migration.New(db, env.source, env.log)
	if err != nil {
		return err
	}
	defer env.migrator.Close()
	return cmd.run(env, args)
}

// argAt returns args[i] or a usage error naming what is missing
func argAt(args []string, i int, usage string) (string, error) {
	if len(args) <= i {
		return "", fmt.Errorf("%w: migrate %s", errUsage, usage)
	}
	return args[i], nil
}

func runStep(e *runEnv, args []string) error {
	raw, err := argAt(args, 0, "step <n>")
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid step count %q", errUsage, raw)
	}
	return e.migrator.Steps(n)
}

func runGoTo(e *runEnv, args []string) error {
	raw, err := argAt(args, 0, "goto <version>")
	if err != nil {
		return err
	}
	version, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: invalid version %q", errUsage, raw)
	}
	return e.migrator.GoTo(uint(version))
}

func runForce(e *runEnv, args []string) error {
	raw, err := argAt(args, 0, "force <version>")
	if err != nil {
		return err
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid version %q", errUsage, raw)
	}
	return e.migrator.Force(version)
}

func runStatus(e *runEnv, _ []string) error {
	status, err := migration.CurrentStatus(e.migrator, e.source)
	if err != nil {
		return err
	}
	if status.Version == 0 {
		e.log.Info("No migrations applied", zap.Uint("latest", status.Latest))
		return nil
	}
	e.log.Info("Schema version",
		zap.Uint("version", status.Version),
		zap.Uint("latest", status.Latest),
		zap.Bool("dirty", status.Dirty),
		zap.Bool("pending", status.Pending),
	)
	return nil
}

func runCreate(e *runEnv, args []string) error {
	name, err := argAt(args, 0, "create <name> [description]")
	if err != nil {
		return err
	}
	var description string
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(e.dir, name, description)
	if err != nil {
		return err
	}
	e.log.Info("Migration created",
		zap.Uint("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func runList(e *runEnv, _ []string) error {
	names, err := migration.ListMigrations(e.source)
	if err != nil {
		return err
	}
	e.log.Info("Available migrations", zap.Int("count", len(names)))
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Return service schema tool

Usage:
  migrate [-path dir] [-log-level level] <command> [arguments]

Commands:
  up                    apply every pending migration
  down                  roll back every migration
  step <n>              apply n migrations, negative n rolls back
  goto <version>        migrate up or down to version
  version, status       applied and latest version
  force <version>       mark version applied and clear the dirty flag
  create <name> [desc]  write a new up/down file pair
  list                  list the migration files

Without -path the migrations compiled into the binary are used and create
writes to ./migrations.

Database settings come from ERP_DATABASE_HOST, ERP_DATABASE_PORT,
ERP_DATABASE_USER, ERP_DATABASE_PASSWORD, ERP_DATABASE_DBNAME and
ERP_DATABASE_SSLMODE.
`)
}
