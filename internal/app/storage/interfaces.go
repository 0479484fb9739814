package storage

import (
	"context"
	"errors"

	"github.com/R3E-Network/presale_layer/internal/app/domain/campaign"
	"github.com/R3E-Network/presale_layer/internal/app/domain/event"
	"github.com/R3E-Network/presale_layer/internal/app/domain/treasury"
)

// ErrNotFound reports that a requested record does not exist. Store
// implementations wrap it so callers can classify misses without matching
// message text.
var ErrNotFound = errors.New("not found")

// CampaignStore persists campaign aggregates and their registrations.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error)
	UpdateCampaign(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error)
	GetCampaign(ctx context.Context, id string) (campaign.Campaign, error)
	ListCampaigns(ctx context.Context) ([]campaign.Campaign, error)

	// RecordRegistration writes the registration and the updated campaign
	// counters as one unit: both commit or neither does.
	RecordRegistration(ctx context.Context, c campaign.Campaign, reg campaign.Registration) (campaign.Campaign, campaign.Registration, error)
	GetRegistration(ctx context.Context, campaignID, principal string) (campaign.Registration, error)
	ListRegistrations(ctx context.Context, campaignID string) ([]campaign.Registration, error)
}

// AccessListStore persists access list membership per campaign.
type AccessListStore interface {
	AddAccessEntry(ctx context.Context, entry campaign.AccessEntry) (campaign.AccessEntry, error)
	RemoveAccessEntry(ctx context.Context, campaignID, principal string) error
	GetAccessEntry(ctx context.Context, campaignID, principal string) (campaign.AccessEntry, error)
	ListAccessEntries(ctx context.Context, campaignID string) ([]campaign.AccessEntry, error)
}

// EventStore persists the append-only audit trail. AppendEvent assigns the
// per-campaign sequence.
type EventStore interface {
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	ListEvents(ctx context.Context, campaignID string, limit int) ([]event.Event, error)
}

// WithdrawalStore persists treasury withdrawals.
type WithdrawalStore interface {
	CreateWithdrawal(ctx context.Context, wd treasury.Withdrawal) (treasury.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, wd treasury.Withdrawal) (treasury.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id string) (treasury.Withdrawal, error)
	ListWithdrawals(ctx context.Context, campaignID string) ([]treasury.Withdrawal, error)
	ListPendingWithdrawals(ctx context.Context) ([]treasury.Withdrawal, error)
}
