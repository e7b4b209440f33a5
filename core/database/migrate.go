package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/petbot/core/logger"
	"github.com/m3rciful/petbot/migrations"
)

// ErrDirty is returned when a previous run left the schema half applied.
var ErrDirty = errors.New("database: schema is dirty, fix it and force the version")

type migrationFile struct {
	version uint64
	name    string
}

// RunMigrations applies the embedded archive schema to PostgreSQL.
func RunMigrations(cfg Config) error {
	return Migrate(context.Background(), cfg, migrations.FS)
}

// Migrate waits for the server and applies every up migration in src newer
// than the recorded version.
func Migrate(ctx context.Context, cfg Config, src fs.FS) error {
	if err := WaitForPostgres(PostgresDSN(cfg), 30*time.Second); err != nil {
		logger.Error(ctx, logger.ComponentMigrate, "not_ready", slog.String("err", err.Error()))
		return fmt.Errorf("database not ready: %w", err)
	}

	files, err := upMigrations(src)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	driver, err := iofs.New(src, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", driver, PostgresURL(cfg))
	if err != nil {
		logger.Error(ctx, logger.ComponentMigrate, "init", slog.String("err", err.Error()))
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, logger.ComponentMigrate, "close", slog.Any("err", errors.Join(srcErr, dbErr)))
		}
	}()

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case dirty:
		logger.Error(ctx, logger.ComponentMigrate, "dirty", slog.Uint64("version", uint64(from)))
		return fmt.Errorf("%w (version %d)", ErrDirty, from)
	}

	todo := pending(files, uint64(from))
	start := time.Now()
	err = m.Up()
	took := time.Since(start)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, logger.ComponentMigrate, "apply",
			slog.String("err", err.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("apply migrations: %w", err)
	}

	to := uint64(from)
	if len(todo) > 0 {
		to = todo[len(todo)-1].version
		names := make([]string, len(todo))
		for i, f := range todo {
			names[i] = f.name
		}
		preview, cut := logger.SummarizeStrings(names, 6)
		logger.Debug(ctx, logger.ComponentMigrate, "applied",
			slog.String("files", preview),
			slog.Bool("files_truncated", cut),
		)
	}
	logger.Info(ctx, logger.ComponentMigrate, "summary",
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", to),
		slog.Int("count", len(todo)),
		slog.Duration("duration", took),
	)
	return nil
}

// upMigrations lists the *.up.sql files of src by version. Files without a
// numeric prefix are ignored.
func upMigrations(src fs.FS) ([]migrationFile, error) {
	names, err := fs.Glob(src, "*.up.sql")
	if err != nil {
		return nil, err
	}
	files := make([]migrationFile, 0, len(names))
	for _, name := range names {
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, migrationFile{version: v, name: name})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// pending returns the files newer than version.
func pending(files []migrationFile, version uint64) []migrationFile {
	i := sort.Search(len(files), func(i int) bool { return files[i].version > version })
	return files[i:]
}
