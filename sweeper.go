package scopekit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/robfig/cron/v3"
)

// SweeperConfig controls the background cleanup of expired role
// assignments.
type SweeperConfig struct {
	// Schedule is a cron expression. Defaults to hourly.
	Schedule string
	// Timeout bounds each sweep run.
	Timeout time.Duration
}

// DefaultSweeperConfig returns the default sweeper schedule.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Schedule: "@hourly",
		Timeout:  time.Minute,
	}
}

// Sweeper periodically deletes expired role assignments. Expired
// assignments never grant access whether or not the sweeper has run;
// sweeping only keeps the tables and the effective-rule queries small.
type Sweeper struct {
	service *Service
	cron    *cron.Cron
	config  SweeperConfig
}

// NewSweeper creates a sweeper bound to a service.
//
// Example:
//
//	sweeper := scopekit.NewSweeper(service, scopekit.DefaultSweeperConfig())
//	if err := sweeper.Start(); err != nil {
//	    return err
//	}
//	defer sweeper.Stop()
func NewSweeper(service *Service, config SweeperConfig) *Sweeper {
	if config.Schedule == "" {
		config.Schedule = DefaultSweeperConfig().Schedule
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultSweeperConfig().Timeout
	}
	return &Sweeper{
		service: service,
		cron:    cron.New(),
		config:  config,
	}
}

// Start schedules the sweep and begins running it.
func (sw *Sweeper) Start() error {
	_, err := sw.cron.AddFunc(sw.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sw.config.Timeout)
		defer cancel()

		if _, err := sw.SweepExpired(ctx); err != nil {
			sw.service.logger.Error("assignment sweep failed", "error", err)
		}
	})
	if err != nil {
		return NewError(ErrConfiguration, "invalid sweeper schedule: "+sw.config.Schedule)
	}

	sw.cron.Start()
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish.
func (sw *Sweeper) Stop() {
	<-sw.cron.Stop().Done()
}

// SweepExpired deletes all expired role assignments and invalidates the
// cached rules of every principal that lost one. Returns the number of
// assignments removed. Safe to call directly for an on-demand sweep.
func (sw *Sweeper) SweepExpired(ctx context.Context) (int, error) {
	s := sw.service
	now := time.Now()

	var expired []UserRoleAssignment
	err := dbkit.WithErr1(s.db.NewSelect().Model(&expired).
		Column("ura.tenant_id", "ura.principal_id").
		Where("ura.expires_at IS NOT NULL AND ura.expires_at <= ?", now).
		Scan(ctx), "SweepSelectExpired").Err()
	if err != nil {
		s.metrics.recordSweep(0, err)
		return 0, NewError(ErrDatabase, "failed to list expired assignments")
	}
	if len(expired) == 0 {
		s.metrics.recordSweep(0, nil)
		return 0, nil
	}

	result, err := s.db.NewDelete().Table("user_role_assignments").
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Exec(ctx)
	err = dbkit.WithErr(result, err, "SweepDeleteExpired").Err()
	if err != nil {
		s.metrics.recordSweep(0, err)
		return 0, NewError(ErrDatabase, "failed to delete expired assignments")
	}

	for i := range expired {
		s.cache.invalidate(expired[i].TenantID, expired[i].PrincipalID)
	}

	deleted, _ := result.RowsAffected()
	s.metrics.recordSweep(int(deleted), nil)
	s.logger.Info("swept expired role assignments", "deleted", deleted)

	return int(deleted), nil
}
