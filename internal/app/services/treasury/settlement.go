package treasury

import (
	"context"
	"sync"
	"time"

	"github.com/R3E-Network/presale_layer/internal/app/domain/treasury"
	"github.com/R3E-Network/presale_layer/internal/app/storage"
	"github.com/R3E-Network/presale_layer/internal/app/system"
	"github.com/R3E-Network/presale_layer/pkg/logger"
)

// Settler finalizes a pending withdrawal: success completes it and emits
// the withdrawal event, failure returns the funds to the campaign balance.
// Either way the withdrawal latch clears. The campaign service implements
// this.
type Settler interface {
	ResolveWithdrawal(ctx context.Context, id string, success bool, message string) (treasury.Withdrawal, error)
}

// WithdrawalResolver decides whether an orphaned pending withdrawal has
// settled out of band.
type WithdrawalResolver interface {
	Resolve(ctx context.Context, wd treasury.Withdrawal) (done bool, success bool, message string, retryAfter time.Duration, err error)
}

// TimeoutResolver fails a pending withdrawal once it has been observed
// pending for longer than the cutoff. The clock starts at first
// observation, so a withdrawal whose transfer is still in flight is left
// alone until the cutoff passes.
type TimeoutResolver struct {
	cutoff time.Duration
	seen   sync.Map // withdrawal ID -> first observation
}

// NewTimeoutResolver returns a resolver with the given cutoff.
func NewTimeoutResolver(cutoff time.Duration) *TimeoutResolver {
	if cutoff <= 0 {
		cutoff = 5 * time.Minute
	}
	return &TimeoutResolver{cutoff: cutoff}
}

func (r *TimeoutResolver) Resolve(_ context.Context, wd treasury.Withdrawal) (bool, bool, string, time.Duration, error) {
	if value, ok := r.seen.Load(wd.ID); ok {
		if time.Since(value.(time.Time)) >= r.cutoff {
			r.seen.Delete(wd.ID)
			return true, false, "no settlement confirmation before cutoff", 0, nil
		}
		return false, false, "", r.cutoff / 4, nil
	}
	r.seen.Store(wd.ID, time.Now())
	return false, false, "", r.cutoff / 4, nil
}

// SettlementPoller watches pending withdrawals and resolves the ones a
// crash mid-transfer left behind.
type SettlementPoller struct {
	store    storage.WithdrawalStore
	settler  Settler
	resolver WithdrawalResolver
	interval time.Duration
	log      *logger.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	nextAttempt map[string]time.Time
}

var _ system.Service = (*SettlementPoller)(nil)

// NewSettlementPoller constructs a poller over the withdrawal store. A nil
// resolver defaults to a five-minute timeout resolver.
func NewSettlementPoller(store storage.WithdrawalStore, settler Settler, resolver WithdrawalResolver, log *logger.Logger) *SettlementPoller {
	if log == nil {
		log = logger.NewDefault("treasury-settlement")
	}
	if resolver == nil {
		resolver = NewTimeoutResolver(5 * time.Minute)
	}
	return &SettlementPoller{
		store:       store,
		settler:     settler,
		resolver:    resolver,
		interval:    30 * time.Second,
		log:         log,
		nextAttempt: make(map[string]time.Time),
	}
}

// WithInterval overrides the sweep interval. Call before Start.
func (p *SettlementPoller) WithInterval(interval time.Duration) *SettlementPoller {
	if interval > 0 {
		p.interval = interval
	}
	return p
}

func (p *SettlementPoller) Name() string { return "treasury-settlement" }

func (p *SettlementPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.tick(runCtx)
			}
		}
	}()

	p.log.Info("treasury settlement poller started")
	return nil
}

func (p *SettlementPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (p *SettlementPoller) tick(ctx context.Context) {
	pending, err := p.store.ListPendingWithdrawals(ctx)
	if err != nil {
		p.log.WithError(err).Warn("list pending withdrawals failed")
		return
	}

	now := time.Now()
	for _, wd := range pending {
		if !p.shouldAttempt(wd.ID, now) {
			continue
		}

		done, success, message, retryAfter, err := p.resolver.Resolve(ctx, wd)
		if err != nil {
			p.log.WithError(err).Warnf("resolver error for withdrawal %s", wd.ID)
			p.scheduleNext(wd.ID, retryAfter)
			continue
		}

		if !done {
			p.scheduleNext(wd.ID, retryAfter)
			continue
		}

		if p.settler == nil {
			p.log.Warnf("no settler attached; cannot resolve withdrawal %s", wd.ID)
			continue
		}

		if _, err := p.settler.ResolveWithdrawal(ctx, wd.ID, success, message); err != nil {
			p.log.WithError(err).Warnf("resolve withdrawal %s failed", wd.ID)
			p.scheduleNext(wd.ID, retryAfter)
			continue
		}
		p.log.Infof("withdrawal %s resolved (success=%t)", wd.ID, success)
		p.clearSchedule(wd.ID)
	}
}

func (p *SettlementPoller) shouldAttempt(id string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, ok := p.nextAttempt[id]
	return !ok || now.After(next)
}

func (p *SettlementPoller) scheduleNext(id string, after time.Duration) {
	if after <= 0 {
		after = p.interval
	}
	p.mu.Lock()
	p.nextAttempt[id] = time.Now().Add(after)
	p.mu.Unlock()
}

func (p *SettlementPoller) clearSchedule(id string) {
	p.mu.Lock()
	delete(p.nextAttempt, id)
	p.mu.Unlock()
}
