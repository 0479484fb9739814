package campaign

import "time"

// Phase is where a timestamp falls relative to the registration window. It
// is always computed from a supplied clock reading, never stored.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseActive     Phase = "active"
	PhaseEnded      Phase = "ended"
)

// Settings holds the four owner-tunable campaign parameters. They are always
// replaced together.
type Settings struct {
	StartTime        time.Time
	EndTime          time.Time
	MaxRegistrations int64
	RegistrationFee  int64
}

// PhaseAt reports the campaign phase for the given timestamp. The window is
// inclusive at both ends.
func (s Settings) PhaseAt(at time.Time) Phase {
	if at.Before(s.StartTime) {
		return PhaseNotStarted
	}
	if at.After(s.EndTime) {
		return PhaseEnded
	}
	return PhaseActive
}

// Campaign is one hosted registration campaign: a bounded window with a
// capacity, an entry fee, an optional access list, and a treasury balance
// credited by registrations.
type Campaign struct {
	ID                string
	Name              string
	Owner             string
	PendingOwner      string
	Settings          Settings
	RegistrationCount int64
	Balance           int64
	Paused            bool
	WhitelistEnabled  bool
	WithdrawLocked    bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Registration is one principal's ledger entry. At most one exists per
// principal and campaign, and it is never deleted. The zero value with
// Registered false is the answer for principals that never registered.
type Registration struct {
	CampaignID   string
	Principal    string
	Registered   bool
	RegisteredAt time.Time
	PaidFee      int64
}

// AccessEntry is one access list membership.
type AccessEntry struct {
	CampaignID string
	Principal  string
	AddedAt    time.Time
}
