package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/petbot/core/config"
	coredatabase "github.com/m3rciful/petbot/core/database"
	"github.com/m3rciful/petbot/core/logger"
	"github.com/m3rciful/petbot/core/metrics"
)

// Options control the generic bootstrap pipeline shared between bots.
// Nil hooks fall back to the real implementations.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
	OpenSQLite func(path string) (*sqlx.DB, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB is nil when the archive is disabled.
type Result struct {
	DB      *sqlx.DB
	Driver  string
	Metrics *metrics.Metrics
}

// Run initializes the logger and metrics, then opens the archive database the
// config asks for, applying migrations first on PostgreSQL.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{Metrics: metrics.New(cfg.Metrics.Namespace)}

	switch cfg.Archive.Driver {
	case "":
		return res, nil
	case coreconfig.ArchivePostgres:
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(cfg.Archive.Postgres); err != nil {
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(cfg.Archive.Postgres)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB, res.Driver = db, coredatabase.DriverPostgres
	case coreconfig.ArchiveSQLite:
		open := opts.OpenSQLite
		if open == nil {
			open = coredatabase.OpenSQLite
		}
		db, err := open(cfg.Archive.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB, res.Driver = db, coredatabase.DriverSQLite
	default:
		return nil, fmt.Errorf("bootstrap: unsupported archive driver %q", cfg.Archive.Driver)
	}
	return res, nil
}
