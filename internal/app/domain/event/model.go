package event

import (
	"encoding/json"
	"time"
)

// Event is one recorded fact on a campaign's audit trail. The sequence is
// assigned by the store and orders events within a campaign; it never
// repeats or goes backwards.
type Event struct {
	ID         string          `json:"id"`
	CampaignID string          `json:"campaign_id"`
	Sequence   int64           `json:"sequence"`
	Name       string          `json:"name"`
	Data       json.RawMessage `json:"data,omitempty"`
	EmittedAt  time.Time       `json:"emitted_at"`
}
