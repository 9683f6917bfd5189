package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	logx "menubot/pkg/logx"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

type postgresStore struct {
	db  *sqlx.DB
	log logx.Logger
	now func() time.Time
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}

	if err := runPostgresMigrations(dsn, log); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		log.Error("db connect failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}
	log.Info("db connected", logx.Int("pool_open", cfg.MaxConns), logx.Duration("took", time.Since(start)))
	return &postgresStore{db: db, log: log, now: time.Now}, nil
}

// runPostgresMigrations applies the embedded up migrations on a dedicated
// connection that migrate closes when done.
func runPostgresMigrations(dsn string, log logx.Logger) error {
	src, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	mdb, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("migrations db: %w", err)
	}
	drv, err := pgmigrate.WithInstance(mdb, &pgmigrate.Config{})
	if err != nil {
		_ = mdb.Close()
		return fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		_ = mdb.Close()
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	fromVer, _, _ := m.Version()
	start := time.Now()
	switch upErr := m.Up(); {
	case upErr == nil:
	case errors.Is(upErr, migrate.ErrNoChange):
		log.Debug("migrations up to date", logx.Uint64("version", uint64(fromVer)))
		return nil
	default:
		return fmt.Errorf("migration execution failed: %w", upErr)
	}
	toVer, _, _ := m.Version()
	log.Info("migrations summary",
		logx.Uint64("from_ver", uint64(fromVer)),
		logx.Uint64("to_ver", uint64(toVer)),
		logx.Duration("took", time.Since(start)),
	)
	return nil
}

func (s *postgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *postgresStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.GetContext(ctx, &v, `SELECT value FROM menu_kv WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *postgresStore) Write(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO menu_kv(key, value, updated_at) VALUES($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, s.now().UnixMilli(),
	)
	return err
}

func (s *postgresStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM menu_kv WHERE updated_at < $1`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
