package main

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mnemo-db/mnemo/pkg/query"
)

// idleWatchdog implements spec §9's "optional idle-timeout watchdog
// that issues a final auto-shutdown checkpoint before exit": every
// REST request refreshes a last-activity timestamp, and a poll loop
// triggers shutdown once that timestamp is older than the configured
// timeout.
type idleWatchdog struct {
	timeout      time.Duration
	lastActivity atomic.Int64 // unix nanoseconds
	engine       *query.Engine
	agentID      string
	logger       *slog.Logger
	stop         context.CancelFunc
}

// newIdleWatchdog returns nil when timeoutSeconds is non-positive,
// matching the CLI's "0 disables the idle-timeout watchdog" contract.
func newIdleWatchdog(timeoutSeconds int, engine *query.Engine, agentID string, logger *slog.Logger, stop context.CancelFunc) *idleWatchdog {
	if timeoutSeconds <= 0 {
		return nil
	}
	w := &idleWatchdog{
		timeout: time.Duration(timeoutSeconds) * time.Second,
		engine:  engine,
		agentID: agentID,
		logger:  logger,
		stop:    stop,
	}
	w.touch()
	return w
}

func (w *idleWatchdog) touch() {
	w.lastActivity.Store(time.Now().UnixNano())
}

func (w *idleWatchdog) touchMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		w.touch()
		c.Next()
	}
}

// run polls idleness at a fraction of the configured timeout and, once
// exceeded, writes one "auto-shutdown" checkpoint for the configured agent and
// signals the main goroutine to begin graceful shutdown.
func (w *idleWatchdog) run(ctx context.Context) {
	pollInterval := w.timeout / 4
	if pollInterval < time.Second {
		pollInterval = time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idleFor := time.Since(time.Unix(0, w.lastActivity.Load()))
			if idleFor < w.timeout {
				continue
			}
			w.logger.Info("idle timeout reached, issuing auto-shutdown checkpoint", "idle_for", idleFor)
			if _, err := w.engine.Checkpoint(ctx, query.CheckpointRequest{
				AgentID: w.agentID,
				Label:   "auto-shutdown",
			}); err != nil {
				w.logger.Error("auto-shutdown checkpoint failed", "error", err)
			}
			w.stop()
			return
		}
	}
}
