package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/service"
)

type TokenRefreshJob struct {
	cs     service.ConnectionService
	within time.Duration
}

func NewTokenRefreshJob(cs service.ConnectionService, within time.Duration) *TokenRefreshJob {
	return &TokenRefreshJob{
		cs:     cs,
		within: within,
	}
}

// RefreshTokens refreshes every connection whose token expires inside the
// job's window.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	conns, err := c.cs.ListExpiring(ctx, c.within)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 4
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, conn := range conns {
		if conn.Platform != models.PlatformLinkedIn {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(conn *models.PlatformConnection) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.cs.RefreshToken(ctx, conn); err != nil {
				slog.Error("unable to refresh token", "platform", conn.Platform, "error", err)
				return
			}
			slog.Info("token refreshed", "platform", conn.Platform)
		}(conn)
	}

	wg.Wait()
}
