package jobs

import (
	"log/slog"
	"time"

	"psibuilder/internal/analytics"
	"psibuilder/internal/config"
	"psibuilder/internal/database"
	"psibuilder/internal/onboarding"
)

// CleanupJob removes expired onboarding sessions and analytics rows past the
// retention window.
type CleanupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewCleanupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run deletes expired onboarding sessions and counter rows older than the
// retention period. This helps with LGPD data minimization and keeps the
// analytics tables small.
func (j *CleanupJob) Run() error {
	db := j.dbManager.GetConnection()

	if err := onboarding.CleanupExpiredOnboardingSessions(db); err != nil {
		j.logger.Error("Failed to clean up expired onboarding sessions", slog.Any("error", err))
		return err
	}

	retentionDays := j.cfg.AnalyticsRetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting cleanup of old analytics rows",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoff))

	deleted, err := analytics.PurgeOlderThan(db, j.logger, cutoff)
	if err != nil {
		j.logger.Error("Failed to delete old analytics rows", slog.Any("error", err))
		return err
	}

	if deleted == 0 {
		j.logger.Debug("No old analytics rows to clean up")
		return nil
	}

	j.logger.Info("Cleaned up old analytics rows",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", retentionDays))

	return nil
}
