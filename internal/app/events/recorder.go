// Package events records campaign facts: every emitted event is appended to
// the durable store first, then fanned out to live publishers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/presale_layer/internal/app/domain/event"
	"github.com/R3E-Network/presale_layer/internal/app/metrics"
	"github.com/R3E-Network/presale_layer/internal/app/storage"
	"github.com/R3E-Network/presale_layer/pkg/logger"
)

// Publisher delivers a recorded event to a live channel. Delivery is
// best-effort: the durable append is the source of truth and a publisher
// failure never fails the operation that emitted the event.
type Publisher interface {
	Publish(ctx context.Context, evt event.Event) error
}

// Recorder is the single write path for campaign events.
type Recorder struct {
	store      storage.EventStore
	publishers []Publisher
	log        *logger.Logger
}

// NewRecorder returns a recorder appending to store and fanning out to the
// given publishers.
func NewRecorder(store storage.EventStore, log *logger.Logger, publishers ...Publisher) *Recorder {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Recorder{store: store, publishers: publishers, log: log}
}

// Record marshals payload, appends the event to the store (which assigns
// the per-campaign sequence), and fans it out.
func (r *Recorder) Record(ctx context.Context, campaignID, name string, payload any) (event.Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return event.Event{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}

	evt := event.Event{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		Name:       name,
		Data:       data,
		EmittedAt:  time.Now().UTC(),
	}

	stored, err := r.store.AppendEvent(ctx, evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("append %s event: %w", name, err)
	}
	metrics.RecordEvent(stored.Name)

	for _, pub := range r.publishers {
		if err := pub.Publish(ctx, stored); err != nil {
			r.log.WithError(err).WithFields(map[string]any{
				"campaign_id": campaignID,
				"event":       name,
			}).Warn("event publish failed")
		}
	}
	return stored, nil
}

// List returns a campaign's recorded events in sequence order. A limit of
// zero returns everything.
func (r *Recorder) List(ctx context.Context, campaignID string, limit int) ([]event.Event, error) {
	return r.store.ListEvents(ctx, campaignID, limit)
}
