package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"go.opentelemetry.io/otel"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/rs/zerolog"
	"github.com/simukti/sqldb-logger/logadapter/zerologadapter"

	"identityapp/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
	QueryBuilder *squirrel.StatementBuilderType
}

type Options struct {
	Path     string
	LogQuery bool
}

// New opens the database through otelsql and sqldb-logger and migrates it on
// that same pool, so ":memory:" databases keep their schema.
func New(opts Options) (*DB, error) {
	if opts.Path == "" {
		opts.Path = "database.db"
	}

	sqlDB, err := otelsql.Open("sqlite3", opts.Path,
		otelsql.WithDBSystem("sqlite"),
		otelsql.WithDBName("identityapp"),
		otelsql.WithTracerProvider(otel.GetTracerProvider()),
	)
	if err != nil {
		return nil, fmt.Errorf("open traced sqlite: %w", err)
	}

	db := sqlDB
	if opts.LogQuery {
		logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "sqlite").Logger()
		db = sqldblogger.OpenDriver(opts.Path, sqlDB.Driver(), zerologadapter.New(logger),
			sqldblogger.WithMinimumLevel(sqldblogger.LevelDebug),
		)
		sqlDB.Close()
	}

	// One long-lived connection: every ":memory:" connection is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("sqlite database ready", "path", opts.Path)

	return Wrap(db), nil
}

// Wrap pairs an open connection with the sqlite query builder.
func Wrap(db *sql.DB) *DB {
	queryBuilder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

	return &DB{
		DB:           db,
		QueryBuilder: &queryBuilder,
	}
}

func RunMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// TranslateError maps driver errors onto repository errors.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", domain.ErrUniqueViolation, err)
	}

	return err
}
