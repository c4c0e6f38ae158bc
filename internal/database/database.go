package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"shopbot/internal/config"
)

const (
	connectTimeout = 5 * time.Second
	healthTimeout  = time.Second
)

//go:embed migrations/*.sql
var migrationsDir embed.FS

// Service represents a service that interacts with a database.
type Service interface {
	// DB exposes the shared connection pool.
	DB() *sql.DB

	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health(ctx context.Context) map[string]string

	// HasTable reports whether the named table exists in the current schema.
	HasTable(ctx context.Context, name string) (bool, error)

	// RunMigrations applies every pending embedded migration.
	RunMigrations() error

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error
}

type service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgres opens the process-wide pool and verifies it with a ping.
func NewPostgres(ctx context.Context, conf config.Database, logger *zap.Logger) (Service, error) {
	db, err := sql.Open("pgx", conf.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(conf.MaxOpenConns)
	db.SetMaxIdleConns(conf.MaxIdleConns)
	db.SetConnMaxLifetime(conf.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &service{db: db, logger: logger}, nil
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) RunMigrations() error {
	d, err := iofs.New(migrationsDir, "migrations")
	if err != nil {
		return fmt.Errorf("failed to return an iofs driver: %w", err)
	}

	driver, err := migratepgx.WithInstance(s.db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("failed to get a new migrate instance: %w", err)
	}
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to apply migrations to the DB: %w", err)
		}
		s.logger.Info("database schema is up to date")
		return nil
	}
	s.logger.Info("database migrations applied")
	return nil
}

func (s *service) HasTable(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)",
		name,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Health pings the pool and reports its statistics as strings, ready to be
// rendered by the /healthz handler. "status" is "up" or "down".
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("database health check failed", zap.Error(err))
		return map[string]string{
			"status": "down",
			"error":  err.Error(),
		}
	}

	st := s.db.Stats()
	health := map[string]string{
		"status":           "up",
		"open_connections": strconv.Itoa(st.OpenConnections),
		"max_connections":  strconv.Itoa(st.MaxOpenConnections),
		"in_use":           strconv.Itoa(st.InUse),
		"idle":             strconv.Itoa(st.Idle),
		"wait_count":       strconv.FormatInt(st.WaitCount, 10),
		"wait_duration":    st.WaitDuration.String(),
	}
	if warning := poolWarning(st); warning != "" {
		health["warning"] = warning
	}
	return health
}

// poolWarning flags a pool that is close to its limit or recycling too often.
func poolWarning(st sql.DBStats) string {
	switch {
	case st.MaxOpenConnections > 0 && st.InUse >= st.MaxOpenConnections:
		return "connection pool exhausted"
	case st.WaitCount > 0 && st.WaitDuration > time.Second:
		return "callers are waiting for connections"
	case st.OpenConnections > 0 && st.MaxLifetimeClosed > int64(st.OpenConnections)*10:
		return "connections recycled often, check DB_CONN_MAX_LIFETIME"
	}
	return ""
}

// Close closes the database connection.
func (s *service) Close() error {
	s.logger.Info("disconnected from database")
	return s.db.Close()
}
