package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/erp/valuation/internal/infrastructure/config"
	"github.com/erp/valuation/internal/infrastructure/logger"
	"github.com/erp/valuation/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const usage = `Valuation schema migrations (postgres)

Usage:
  migrate [-path dir] [-log-level level] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations, negative n rolls back
  version               Show the applied version
  force <version>       Mark a version as applied without running it
  create <name> [desc]  Write a new up/down migration pair
  list                  List migration files

The connection comes from config.toml or ERP_DATABASE_HOST, ERP_DATABASE_PORT,
ERP_DATABASE_USER, ERP_DATABASE_PASSWORD, ERP_DATABASE_DBNAME and
ERP_DATABASE_SSLMODE. SQLite databases are created by the server on startup.
`

var errUsage = errors.New("invalid arguments")

// fileCommand works on the migrations directory only
type fileCommand func(dir string, args []string, log *zap.Logger) error

// dbCommand needs a live migrator
type dbCommand func(m *migration.Migrator, args []string, log *zap.Logger) error

var fileCommands = map[string]fileCommand{
	"create": createMigration,
	"list":   listMigrations,
}

var dbCommands = map[string]dbCommand{
	"up":   func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Up() },
	"down": func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Down() },
	"step": func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(n)
	},
	"force": func(m *migration.Migrator, args []string, log *zap.Logger) error {
		v, err := intArg(args)
		if err != nil {
			return err
		}
		log.Warn("Forcing migration version", zap.Int("version", v))
		return m.Force(v)
	},
	"version": func(m *migration.Migrator, _ []string, log *zap.Logger) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	},
}

func main() {
	dir := flag.String("path", "", "migrations directory (default: nearest ./migrations)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(args[0], args[1:], resolveDir(*dir), log); err != nil {
		log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		_ = logger.Sync(log)
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		os.Exit(1)
	}
	_ = logger.Sync(log)
}

func run(command string, args []string, dir string, log *zap.Logger) error {
	log.Debug("Migration CLI", zap.String("command", command), zap.String("migrations_path", dir))

	if cmd, ok := fileCommands[command]; ok {
		return cmd(dir, args, log)
	}
	cmd, ok := dbCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("%w: database driver is %q, migrations need postgres", errUsage, cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		return err
	}
	defer m.Close()
	return cmd(m, args, log)
}

func createMigration(dir string, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: create needs a name", errUsage)
	}
	var description string
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func listMigrations(dir string, _ []string, _ *zap.Logger) error {
	names, err := migration.ListMigrations(dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

// resolveDir returns an absolute migrations directory, searching upward from
// the working directory when none is given.
func resolveDir(dir string) string {
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			dir = migration.FindMigrationsPath(wd)
		}
	}
	if dir == "" {
		dir = "migrations"
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

func intArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: missing number", errUsage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[0])
	}
	return n, nil
}
