package treasury

import (
	"context"
	"testing"
	"time"

	"github.com/R3E-Network/presale_layer/internal/app/domain/treasury"
	"github.com/R3E-Network/presale_layer/internal/app/storage/memory"
)

type settleCall struct {
	id      string
	success bool
	message string
}

type fakeSettler struct {
	calls []settleCall
	err   error
}

func (s *fakeSettler) ResolveWithdrawal(_ context.Context, id string, success bool, message string) (treasury.Withdrawal, error) {
	s.calls = append(s.calls, settleCall{id: id, success: success, message: message})
	return treasury.Withdrawal{ID: id}, s.err
}

type fakeResolver struct {
	done    bool
	success bool
	message string
	err     error
}

func (r *fakeResolver) Resolve(context.Context, treasury.Withdrawal) (bool, bool, string, time.Duration, error) {
	return r.done, r.success, r.message, time.Minute, r.err
}

func seedPending(t *testing.T, store *memory.Store, id string) treasury.Withdrawal {
	t.Helper()
	wd, err := store.CreateWithdrawal(context.Background(), treasury.Withdrawal{
		ID:          id,
		CampaignID:  "camp-1",
		Amount:      100,
		To:          "owner-addr",
		Status:      treasury.StatusPending,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed withdrawal: %v", err)
	}
	return wd
}

func TestPollerResolvesDoneWithdrawal(t *testing.T) {
	store := memory.New()
	seedPending(t, store, "wd-1")

	settler := &fakeSettler{}
	poller := NewSettlementPoller(store, settler, &fakeResolver{done: true, success: false, message: "orphaned"}, nil)

	poller.tick(context.Background())

	if len(settler.calls) != 1 {
		t.Fatalf("expected 1 settle call, got %d", len(settler.calls))
	}
	call := settler.calls[0]
	if call.id != "wd-1" || call.success || call.message != "orphaned" {
		t.Fatalf("unexpected settle call: %+v", call)
	}
}

func TestPollerLeavesUnresolvedPending(t *testing.T) {
	store := memory.New()
	seedPending(t, store, "wd-1")

	settler := &fakeSettler{}
	poller := NewSettlementPoller(store, settler, &fakeResolver{done: false}, nil)

	poller.tick(context.Background())
	if len(settler.calls) != 0 {
		t.Fatalf("expected no settle calls, got %d", len(settler.calls))
	}

	// Not done schedules a retry, so an immediate second tick skips it.
	poller.tick(context.Background())
	if len(settler.calls) != 0 {
		t.Fatalf("retry backoff ignored: %d settle calls", len(settler.calls))
	}
}

func TestTimeoutResolverFailsAfterCutoff(t *testing.T) {
	resolver := NewTimeoutResolver(30 * time.Millisecond)
	wd := treasury.Withdrawal{ID: "wd-1", Status: treasury.StatusPending}

	done, _, _, _, err := resolver.Resolve(context.Background(), wd)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if done {
		t.Fatal("first observation must not resolve")
	}

	time.Sleep(50 * time.Millisecond)

	done, success, message, _, err := resolver.Resolve(context.Background(), wd)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !done || success {
		t.Fatalf("expected failed resolution after cutoff, got done=%t success=%t", done, success)
	}
	if message == "" {
		t.Fatal("expected a failure message")
	}
}

func TestPollerStartStop(t *testing.T) {
	store := memory.New()
	poller := NewSettlementPoller(store, &fakeSettler{}, &fakeResolver{}, nil).WithInterval(10 * time.Millisecond)

	ctx := context.Background()
	if err := poller.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := poller.Start(ctx); err != nil {
		t.Fatalf("second start should be a no-op: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := poller.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := poller.Stop(stopCtx); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
}
