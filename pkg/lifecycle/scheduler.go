package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/mnemo-db/mnemo/pkg/metrics"
	"github.com/mnemo-db/mnemo/pkg/storage"
)

// SchedulerConfig controls the background pass cadence and which
// agents the scheduler sweeps. Grounded on the teacher's
// pkg/cleanup.Service retention loop.
type SchedulerConfig struct {
	Interval time.Duration

	// ConflictResolution is applied automatically to every detected
	// conflict; ResolveManual (the default) leaves them for an operator.
	ConflictResolution ConflictResolution

	// AgentSweepLimit bounds how many memories discoverAgents scans to
	// find distinct agent ids per sweep.
	AgentSweepLimit int
}

// Scheduler periodically runs the decay, consolidation, and conflict
// passes across every agent with memories, the way the teacher's
// cleanup.Service periodically enforces retention across every
// session/event row.
type Scheduler struct {
	manager *Manager
	config  SchedulerConfig
	logger  *slog.Logger

	// Metrics is optional; when set, the decay and consolidation passes
	// record their outcomes via the shared Prometheus recorder (conflict
	// detection is not recorded).
	Metrics *metrics.Recorder

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a Scheduler over manager. A zero-value config
// falls back to a one-hour interval and manual conflict resolution.
func NewScheduler(manager *Manager, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.ConflictResolution == "" {
		config.ConflictResolution = ResolveManual
	}
	if config.AgentSweepLimit <= 0 {
		config.AgentSweepLimit = 10000
	}
	return &Scheduler{manager: manager, config: config, logger: manager.logger()}
}

// Start launches the background loop. A no-op if already running.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("lifecycle scheduler started", "interval", s.config.Interval)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("lifecycle scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context) {
	for _, agentID := range s.discoverAgents(ctx) {
		s.runAgent(ctx, agentID)
	}
}

func (s *Scheduler) runAgent(ctx context.Context, agentID string) {
	decayResult, err := s.manager.DecayPass(ctx, agentID)
	if err != nil {
		s.logger.Error("lifecycle: decay pass failed", "agent_id", agentID, "error", err)
	} else if len(decayResult.Forgotten) > 0 || len(decayResult.Archived) > 0 {
		s.logger.Info("lifecycle: decay pass", "agent_id", agentID,
			"forgotten", len(decayResult.Forgotten), "archived", len(decayResult.Archived))
	}
	if s.Metrics != nil && decayResult != nil {
		s.Metrics.RecordDecayPass(len(decayResult.Forgotten), len(decayResult.Archived), err)
	}

	consolidationResult, err := s.manager.ConsolidationPass(ctx, agentID)
	if err != nil {
		s.logger.Error("lifecycle: consolidation pass failed", "agent_id", agentID, "error", err)
	} else if len(consolidationResult.Created) > 0 {
		s.logger.Info("lifecycle: consolidation pass", "agent_id", agentID, "clusters", len(consolidationResult.Created))
	}
	if s.Metrics != nil && consolidationResult != nil {
		s.Metrics.RecordConsolidationPass(len(consolidationResult.Created), err)
	}

	pairs, err := s.manager.DetectConflicts(ctx, agentID)
	if err != nil {
		s.logger.Error("lifecycle: conflict detection failed", "agent_id", agentID, "error", err)
		return
	}
	if len(pairs) == 0 {
		return
	}
	s.logger.Info("lifecycle: conflicts detected", "agent_id", agentID, "count", len(pairs))
	if s.config.ConflictResolution == ResolveManual {
		return
	}
	for _, pair := range pairs {
		if _, err := s.manager.ResolveConflict(ctx, pair, s.config.ConflictResolution); err != nil {
			s.logger.Error("lifecycle: conflict resolution failed", "agent_id", agentID,
				"first_id", pair.FirstID, "second_id", pair.SecondID, "error", err)
		}
	}
}

// discoverAgents derives the set of agents with at least one memory by
// listing memories unfiltered by agent, since storage.Backend exposes
// no dedicated agent-listing method.
func (s *Scheduler) discoverAgents(ctx context.Context) []string {
	records, err := s.manager.Storage.ListMemories(ctx, storage.MemoryFilter{Limit: s.config.AgentSweepLimit})
	if err != nil {
		s.logger.Error("lifecycle: agent discovery failed", "error", err)
		return nil
	}
	seen := make(map[string]bool)
	var agents []string
	for _, r := range records {
		if !seen[r.AgentID] {
			seen[r.AgentID] = true
			agents = append(agents, r.AgentID)
		}
	}
	return agents
}
