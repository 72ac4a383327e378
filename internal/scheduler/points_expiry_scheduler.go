package scheduler

import (
	"context"
	"time"

	"github.com/kapehan/kapehan-backend/internal/app/repository"
	"github.com/kapehan/kapehan-backend/internal/app/service"
	"github.com/kapehan/kapehan-backend/pkg/logger"
	"github.com/kapehan/kapehan-backend/pkg/redis"
	"github.com/robfig/cron/v3"
)

const sweepLockTTL = 30 * time.Minute

// PointsExpiryScheduler runs the daily loyalty sweep: lapse points past
// their expiry window and warn holders whose points are about to lapse.
type PointsExpiryScheduler struct {
	cron           *cron.Cron
	loyaltyService service.LoyaltyService
	loyaltyRepo    repository.LoyaltyRepository
}

func NewPointsExpiryScheduler(loyaltyService service.LoyaltyService, loyaltyRepo repository.LoyaltyRepository) *PointsExpiryScheduler {
	return &PointsExpiryScheduler{
		cron:           cron.New(),
		loyaltyService: loyaltyService,
		loyaltyRepo:    loyaltyRepo,
	}
}

// Start schedules the sweep for 03:00 daily, off the cafe's busy hours.
func (s *PointsExpiryScheduler) Start() error {
	_, err := s.cron.AddFunc("0 3 * * *", s.RunSweep)
	if err != nil {
		logger.Error("Failed to add cron job for points expiry sweep", err, nil)
		return err
	}

	s.cron.Start()
	logger.Info("Points expiry scheduler started (daily at 3:00 AM)", nil)
	return nil
}

// RunSweep executes one sweep pass. A Redis lock keeps concurrent
// instances from sweeping the same day twice; expiry itself is
// idempotent either way.
func (s *PointsExpiryScheduler) RunSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	if redis.GetClient() != nil {
		acquired, err := redis.AcquireLock(ctx, "loyalty:expiry-sweep", sweepLockTTL)
		if err == nil && !acquired {
			logger.Info("Points expiry sweep already running elsewhere, skipping", nil)
			return
		}
		if err == nil {
			defer func() {
				if releaseErr := redis.ReleaseLock(ctx, "loyalty:expiry-sweep"); releaseErr != nil {
					logger.Error("Failed to release expiry sweep lock", releaseErr, nil)
				}
			}()
		}
	}

	logger.Info("Starting points expiry sweep", nil)

	userIDs, err := s.loyaltyRepo.ListUserIDsWithEarnedBefore(ctx, time.Now())
	if err != nil {
		logger.Error("Failed to list users for points expiry sweep", err, nil)
		return
	}

	var totalExpired int64
	var failures int
	for _, userID := range userIDs {
		expired, err := s.loyaltyService.Expire(ctx, userID)
		if err != nil {
			logger.Error("Failed to expire points for user", err, map[string]interface{}{
				"user_id": userID,
			})
			failures++
			continue
		}
		totalExpired += expired
	}

	if err := s.loyaltyService.NotifyExpiring(ctx); err != nil {
		logger.Error("Failed to send expiring points notices", err, nil)
	}

	logger.Info("Points expiry sweep finished", map[string]interface{}{
		"users_checked": len(userIDs),
		"total_expired": totalExpired,
		"failures":      failures,
	})
}

func (s *PointsExpiryScheduler) Stop() {
	logger.Info("Stopping points expiry scheduler", nil)
	s.cron.Stop()
}
