package backend

import (
	"context"
	"time"

	"github.com/gigmarket/gigmarket/internal/models"
	"go.uber.org/zap"
)

// StartAutoRefresh checks the session every interval and refreshes it once
// it is within margin of expiring. It stops when ctx is cancelled.
func (c *Client) StartAutoRefresh(ctx context.Context, interval, margin time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.RLock()
				s := c.session
				c.mu.RUnlock()
				if s == nil || s.ExpiresAt.IsZero() || c.now().Add(margin).Before(s.ExpiresAt) {
					continue
				}
				if _, err := c.RefreshSession(ctx); err != nil {
					c.log.Error("failed to refresh session", zap.Error(err))
					if IsClientError(err) {
						c.clearSession()
						c.emit(models.EventSignedOut, nil)
					}
					continue
				}
				c.log.Info("session refreshed", zap.String("user", s.UserID))
			}
		}
	}()
}
