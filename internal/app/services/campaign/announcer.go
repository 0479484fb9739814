package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/presale_layer/internal/app/domain/campaign"
	"github.com/R3E-Network/presale_layer/internal/app/system"
	"github.com/R3E-Network/presale_layer/pkg/logger"
)

// Announcer sweeps hosted campaigns on a cron schedule, logs phase
// transitions since the previous sweep, and reports per-phase counts to an
// attached observer. It only observes; campaign state is never mutated.
type Announcer struct {
	service  *Service
	schedule string
	observer func(map[campaign.Phase]int)
	log      *logger.Logger

	mu        sync.Mutex
	runner    *cron.Cron
	cancel    context.CancelFunc
	running   bool
	lastPhase map[string]campaign.Phase
}

var _ system.Service = (*Announcer)(nil)

// NewAnnouncer constructs an announcer sweeping on the given cron
// schedule. An empty schedule defaults to one sweep per minute.
func NewAnnouncer(service *Service, schedule string, log *logger.Logger) *Announcer {
	if schedule == "" {
		schedule = "@every 1m"
	}
	if log == nil {
		log = logger.NewDefault("phase-announcer")
	}
	return &Announcer{
		service:   service,
		schedule:  schedule,
		log:       log,
		lastPhase: make(map[string]campaign.Phase),
	}
}

// WithObserver attaches a per-phase count callback, invoked once per
// sweep. Call before Start.
func (a *Announcer) WithObserver(fn func(map[campaign.Phase]int)) *Announcer {
	a.observer = fn
	return a
}

func (a *Announcer) Name() string { return "phase-announcer" }

func (a *Announcer) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	runner := cron.New()
	if _, err := runner.AddFunc(a.schedule, func() { a.sweep(runCtx) }); err != nil {
		cancel()
		a.mu.Unlock()
		return fmt.Errorf("parse announcer schedule %q: %w", a.schedule, err)
	}

	a.runner = runner
	a.cancel = cancel
	a.running = true
	runner.Start()
	a.mu.Unlock()

	// Prime the phase map and observer so boot state is visible before
	// the first scheduled sweep.
	a.sweep(runCtx)

	a.log.WithField("schedule", a.schedule).Info("phase announcer started")
	return nil
}

func (a *Announcer) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	runner := a.runner
	cancel := a.cancel
	a.running = false
	a.runner = nil
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Announcer) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	list, err := a.service.List(ctx)
	if err != nil {
		a.log.WithError(err).Warn("announcer sweep failed")
		return
	}

	now := time.Now().UTC()
	counts := map[campaign.Phase]int{
		campaign.PhaseNotStarted: 0,
		campaign.PhaseActive:     0,
		campaign.PhaseEnded:      0,
	}

	for _, c := range list {
		phase := c.Settings.PhaseAt(now)
		counts[phase]++

		a.mu.Lock()
		prev, seen := a.lastPhase[c.ID]
		a.lastPhase[c.ID] = phase
		a.mu.Unlock()

		if seen && prev != phase {
			a.log.WithField("campaign_id", c.ID).
				WithField("from", string(prev)).
				WithField("to", string(phase)).
				Info("campaign phase changed")
		}
	}

	if a.observer != nil {
		a.observer(counts)
	}
}
