package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCleanupInterval is how often expired sessions are swept.
const DefaultCleanupInterval = time.Minute

// CleanupService periodically removes expired sessions from a Service.
type CleanupService struct {
	service  *Service
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewCleanupService creates a sweeper. A non-positive interval falls back to
// DefaultCleanupInterval.
func NewCleanupService(service *Service, interval time.Duration, logger zerolog.Logger) *CleanupService {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupService{
		service:  service,
		interval: interval,
		logger:   logger.With().Str("component", "chat.cleanup").Logger(),
	}
}

// Start launches the sweep loop. Starting a running service is a no-op.
func (c *CleanupService) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(loopCtx, c.done)
}

// Stop halts the sweep loop and waits for it to exit.
func (c *CleanupService) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// Run blocks sweeping until ctx is done.
func (c *CleanupService) Run(ctx context.Context) {
	c.Start(ctx)
	<-ctx.Done()
	c.Stop()
}

// IsRunning reports whether the sweep loop is active.
func (c *CleanupService) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *CleanupService) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug().Msg("cleanup stopping")
			return
		case <-ticker.C:
			if removed := c.service.CleanupExpired(); removed > 0 {
				c.logger.Info().Int("removed", removed).Int("remaining", c.service.Stats()["total"]).Msg("expired sessions removed")
			}
		}
	}
}
