package database

import (
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/helpers"
)

const (
	defaultConnectRetries = 15
	defaultConnectDelay   = 3 * time.Second
)

// Open connects to the composites database, waiting for it to come up, and
// applies pending migrations from migrationsDir.
func Open(cfg *config.DatabaseConfig, migrationsDir string) (*dbpg.DB, error) {
	retries, delay := connectPolicy(cfg)

	database, err := connect(cfg.DSN, helpers.SplitAndTrim(cfg.Slaves, ","), poolOptions(cfg), retries, delay)
	if err != nil {
		return nil, err
	}

	if err := migrate(database, migrationsDir); err != nil {
		Close(database)
		return nil, err
	}
	return database, nil
}

func connectPolicy(cfg *config.DatabaseConfig) (int, time.Duration) {
	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = defaultConnectRetries
	}
	delay := time.Duration(cfg.ConnectRetryDelaySec) * time.Second
	if delay <= 0 {
		delay = defaultConnectDelay
	}
	return retries, delay
}

func poolOptions(cfg *config.DatabaseConfig) *dbpg.Options {
	return &dbpg.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeSec) * time.Second,
	}
}

func connect(masterDSN string, slaves []string, opts *dbpg.Options, retries int, delay time.Duration) (*dbpg.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		database, err := dbpg.New(masterDSN, slaves, opts)
		switch {
		case err != nil:
			lastErr = err
		case database.Master == nil:
			lastErr = fmt.Errorf("master connection is nil")
		default:
			if err := database.Master.Ping(); err != nil {
				lastErr = err
				Close(database)
				break
			}
			zlog.Logger.Info().
				Int("attempt", attempt).
				Int("slaves", len(slaves)).
				Msg("Composites database connected")
			return database, nil
		}

		zlog.Logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("retries", retries).
			Dur("delay", delay).
			Msg("Composites database not ready")
		if attempt < retries {
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("connect to composites database after %d attempts: %w", retries, lastErr)
}

func migrate(database *dbpg.DB, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	zlog.Logger.Info().Str("dir", dir).Msg("Applying composites migrations")
	if err := goose.Up(database.Master, dir); err != nil {
		return fmt.Errorf("apply migrations from %s: %w", dir, err)
	}

	version, err := goose.GetDBVersion(database.Master)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("unable to read migration version")
		return nil
	}
	zlog.Logger.Info().Int64("version", version).Msg("Composites schema up to date")
	return nil
}

// Close releases the master and every replica pool.
func Close(database *dbpg.DB) {
	if database == nil {
		return
	}
	if database.Master != nil {
		if err := database.Master.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("closing db master failed")
		}
	}
	for i, s := range database.Slaves {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave_index", i).Msg("closing db slave failed")
		}
	}
}
