package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitcomp/internal/config"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			tier VARCHAR(20) NOT NULL DEFAULT 'free',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS competitions (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			type VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			scoring_type VARCHAR(20) NOT NULL,
			scoring_config JSONB,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			creator_id VARCHAR(64) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CHECK (end_date > start_date)
		)`,
		`CREATE TABLE IF NOT EXISTS competition_participants (
			competition_id VARCHAR(64) NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
			user_id VARCHAR(64) NOT NULL,
			total_points INT NOT NULL DEFAULT 0,
			move_calories INT NOT NULL DEFAULT 0,
			exercise_minutes INT NOT NULL DEFAULT 0,
			stand_hours INT NOT NULL DEFAULT 0,
			step_count INT NOT NULL DEFAULT 0,
			move_progress DOUBLE PRECISION NOT NULL DEFAULT 0,
			exercise_progress DOUBLE PRECISION NOT NULL DEFAULT 0,
			stand_progress DOUBLE PRECISION NOT NULL DEFAULT 0,
			move_goal DOUBLE PRECISION NOT NULL DEFAULT 0,
			exercise_goal DOUBLE PRECISION NOT NULL DEFAULT 0,
			stand_goal DOUBLE PRECISION NOT NULL DEFAULT 0,
			joined_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_sync_at TIMESTAMP,
			PRIMARY KEY (competition_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_ledger (
			competition_id VARCHAR(64) NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
			user_id VARCHAR(64) NOT NULL,
			day DATE NOT NULL,
			move_calories INT NOT NULL DEFAULT 0,
			exercise_minutes INT NOT NULL DEFAULT 0,
			stand_hours INT NOT NULL DEFAULT 0,
			step_count INT NOT NULL DEFAULT 0,
			distance_meters INT NOT NULL DEFAULT 0,
			workouts_completed INT NOT NULL DEFAULT 0,
			points INT NOT NULL DEFAULT 0,
			synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (competition_id, user_id, day)
		)`,
		`CREATE TABLE IF NOT EXISTS invitations (
			id VARCHAR(64) PRIMARY KEY,
			competition_id VARCHAR(64) NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
			inviter_id VARCHAR(64) NOT NULL,
			invitee_id VARCHAR(64) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_participants_points ON competition_participants(competition_id, total_points DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_range ON daily_ledger(competition_id, user_id, day)`,
		`CREATE INDEX IF NOT EXISTS idx_invitations_invitee ON invitations(invitee_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_competitions_status ON competitions(status)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}
