// Package campaign hosts registration campaigns: time-boxed, capacity-bound
// registration windows with an entry fee, an optional access list, a pausable
// gate, and a treasury balance under two-phase ownership.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/presale_layer/internal/app/domain/campaign"
	"github.com/R3E-Network/presale_layer/internal/app/domain/event"
	"github.com/R3E-Network/presale_layer/internal/app/events"
	"github.com/R3E-Network/presale_layer/internal/app/metrics"
	treasurysvc "github.com/R3E-Network/presale_layer/internal/app/services/treasury"
	"github.com/R3E-Network/presale_layer/internal/app/storage"
	"github.com/R3E-Network/presale_layer/pkg/logger"
)

// Service is the campaign state machine. One mutex serializes every
// mutating call across all hosted campaigns; reads go straight to the
// stores. The external payout step of Withdraw runs outside the mutex
// behind the persisted WithdrawLocked latch.
type Service struct {
	mu sync.Mutex

	campaigns   storage.CampaignStore
	accessLists storage.AccessListStore
	withdrawals storage.WithdrawalStore
	recorder    *events.Recorder
	transferor  treasurysvc.Transferor
	validator   PrincipalValidator
	log         *logger.Logger
}

// New constructs a campaign service. The transferor defaults to local
// settlement and the validator to accepting any non-empty principal; use
// the Attach methods to override either.
func New(campaigns storage.CampaignStore, accessLists storage.AccessListStore, withdrawals storage.WithdrawalStore, recorder *events.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("campaign")
	}
	return &Service{
		campaigns:   campaigns,
		accessLists: accessLists,
		withdrawals: withdrawals,
		recorder:    recorder,
		transferor:  treasurysvc.NewLocalTransferor(),
		validator:   AnyPrincipal(),
		log:         log,
	}
}

// AttachTransferor replaces the payout transferor. Call before Start.
func (s *Service) AttachTransferor(t treasurysvc.Transferor) {
	if t != nil {
		s.transferor = t
	}
}

// AttachValidator replaces the principal validator. Call before Start.
func (s *Service) AttachValidator(v PrincipalValidator) {
	if v != nil {
		s.validator = v
	}
}

// CreateParams are the constructor arguments of one campaign.
type CreateParams struct {
	Name             string
	StartTime        time.Time
	EndTime          time.Time
	MaxRegistrations int64
	RegistrationFee  int64
	WhitelistEnabled bool
}

// CreateCampaign creates a campaign owned by the caller.
func (s *Service) CreateCampaign(ctx context.Context, caller string, params CreateParams) (campaign.Campaign, error) {
	owner, err := s.checkPrincipal(caller)
	if err != nil {
		return campaign.Campaign{}, err
	}
	if params.StartTime.After(params.EndTime) {
		return campaign.Campaign{}, campaign.IncorrectDatesError{StartTime: params.StartTime, EndTime: params.EndTime}
	}
	if params.MaxRegistrations <= 0 {
		return campaign.Campaign{}, fmt.Errorf("%w: max registrations must be positive", campaign.ErrInvalidInput)
	}
	if params.RegistrationFee < 0 {
		return campaign.Campaign{}, fmt.Errorf("%w: registration fee must not be negative", campaign.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := campaign.Campaign{
		Name:  strings.TrimSpace(params.Name),
		Owner: owner,
		Settings: campaign.Settings{
			StartTime:        params.StartTime.UTC(),
			EndTime:          params.EndTime.UTC(),
			MaxRegistrations: params.MaxRegistrations,
			RegistrationFee:  params.RegistrationFee,
		},
		WhitelistEnabled: params.WhitelistEnabled,
	}
	c, err = s.campaigns.CreateCampaign(ctx, c)
	if err != nil {
		return campaign.Campaign{}, err
	}

	s.emit(ctx, c.ID, campaign.EventCampaignCreated, campaign.CreatedEvent{
		Owner:            c.Owner,
		StartTime:        c.Settings.StartTime,
		EndTime:          c.Settings.EndTime,
		MaxRegistrations: c.Settings.MaxRegistrations,
		RegistrationFee:  c.Settings.RegistrationFee,
		WhitelistEnabled: c.WhitelistEnabled,
	})
	s.log.WithField("campaign_id", c.ID).
		WithField("owner", c.Owner).
		Info("campaign created")
	return c, nil
}

// Register admits the caller into the campaign. The guards run in a fixed
// order and the first failure is terminal with no partial effects: fee,
// duplicate, access list, window, capacity, pause.
func (s *Service) Register(ctx context.Context, campaignID, caller string, attachedPayment int64, at time.Time) (campaign.Registration, error) {
	principal, err := s.checkPrincipal(caller)
	if err != nil {
		return campaign.Registration{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.Registration{}, err
	}

	if attachedPayment < c.Settings.RegistrationFee {
		return campaign.Registration{}, campaign.IncorrectFeeError{Attached: attachedPayment, Required: c.Settings.RegistrationFee}
	}

	existing, err := s.campaigns.GetRegistration(ctx, c.ID, principal)
	if err == nil {
		return campaign.Registration{}, campaign.AlreadyRegisteredError{Caller: principal, RegisteredAt: existing.RegisteredAt}
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return campaign.Registration{}, err
	}

	if c.WhitelistEnabled {
		if _, err := s.accessLists.GetAccessEntry(ctx, c.ID, principal); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return campaign.Registration{}, campaign.NotWhitelistedError{Principal: principal}
			}
			return campaign.Registration{}, err
		}
	}

	if c.Settings.PhaseAt(at) != campaign.PhaseActive {
		return campaign.Registration{}, campaign.CampaignNotActiveError{StartTime: c.Settings.StartTime, EndTime: c.Settings.EndTime}
	}

	if c.RegistrationCount >= c.Settings.MaxRegistrations {
		return campaign.Registration{}, campaign.CapacityExceededError{Count: c.RegistrationCount, Max: c.Settings.MaxRegistrations}
	}

	if c.Paused {
		return campaign.Registration{}, campaign.EnforcedPauseError{}
	}

	c.RegistrationCount++
	c.Balance += attachedPayment
	reg := campaign.Registration{
		CampaignID:   c.ID,
		Principal:    principal,
		Registered:   true,
		RegisteredAt: at.UTC(),
		PaidFee:      attachedPayment,
	}
	c, reg, err = s.campaigns.RecordRegistration(ctx, c, reg)
	if err != nil {
		return campaign.Registration{}, err
	}

	s.emit(ctx, c.ID, campaign.EventRegistered, campaign.RegisteredEvent{
		Caller:    reg.Principal,
		Timestamp: reg.RegisteredAt,
		PaidFee:   reg.PaidFee,
	})
	metrics.RecordRegistration()
	s.log.WithField("campaign_id", c.ID).
		WithField("principal", reg.Principal).
		WithField("count", c.RegistrationCount).
		Info("registration accepted")
	return reg, nil
}

// CheckRegistration reports a principal's registration. An absent principal
// yields the zero record with Registered false, not an error.
func (s *Service) CheckRegistration(ctx context.Context, campaignID, principal string) (campaign.Registration, error) {
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return campaign.Registration{}, err
	}
	trimmed := strings.TrimSpace(principal)
	reg, err := s.campaigns.GetRegistration(ctx, campaignID, trimmed)
	if errors.Is(err, storage.ErrNotFound) {
		return campaign.Registration{CampaignID: campaignID, Principal: trimmed}, nil
	}
	return reg, err
}

// SetSettings replaces all four campaign settings atomically. It works
// while paused and outside the window.
func (s *Service) SetSettings(ctx context.Context, campaignID, caller string, next campaign.Settings) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.Campaign{}, err
	}
	if err := ownerGuard(c, caller); err != nil {
		return campaign.Campaign{}, err
	}
	if next.StartTime.After(next.EndTime) {
		return campaign.Campaign{}, campaign.IncorrectDatesError{StartTime: next.StartTime, EndTime: next.EndTime}
	}
	if next.MaxRegistrations <= 0 {
		return campaign.Campaign{}, fmt.Errorf("%w: max registrations must be positive", campaign.ErrInvalidInput)
	}
	if next.RegistrationFee < 0 {
		return campaign.Campaign{}, fmt.Errorf("%w: registration fee must not be negative", campaign.ErrInvalidInput)
	}
	if next.MaxRegistrations < c.RegistrationCount {
		return campaign.Campaign{}, campaign.InvalidCapacityError{Max: next.MaxRegistrations, Count: c.RegistrationCount}
	}

	old := c.Settings
	c.Settings = campaign.Settings{
		StartTime:        next.StartTime.UTC(),
		EndTime:          next.EndTime.UTC(),
		MaxRegistrations: next.MaxRegistrations,
		RegistrationFee:  next.RegistrationFee,
	}
	c, err = s.campaigns.UpdateCampaign(ctx, c)
	if err != nil {
		return campaign.Campaign{}, err
	}

	s.emit(ctx, c.ID, campaign.EventSettingsChanged, campaign.SettingsChangedEvent{
		OldStartTime:        old.StartTime,
		OldEndTime:          old.EndTime,
		OldMaxRegistrations: old.MaxRegistrations,
		OldRegistrationFee:  old.RegistrationFee,
		NewStartTime:        c.Settings.StartTime,
		NewEndTime:          c.Settings.EndTime,
		NewMaxRegistrations: c.Settings.MaxRegistrations,
		NewRegistrationFee:  c.Settings.RegistrationFee,
	})
	s.log.WithField("campaign_id", c.ID).Info("settings replaced")
	return c, nil
}

// GetSettings returns the four campaign settings.
func (s *Service) GetSettings(ctx context.Context, campaignID string) (campaign.Settings, error) {
	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.Settings{}, err
	}
	return c.Settings, nil
}

// Pause stops registrations. Administrative operations stay available.
func (s *Service) Pause(ctx context.Context, campaignID, caller string) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.Campaign{}, err
	}
	if err := ownerGuard(c, caller); err != nil {
		return campaign.Campaign{}, err
	}
	if c.Paused {
		return campaign.Campaign{}, campaign.EnforcedPauseError{}
	}

	c.Paused = true
	c, err = s.campaigns.UpdateCampaign(ctx, c)
	if err != nil {
		return campaign.Campaign{}, err
	}

	s.emit(ctx, c.ID, campaign.EventPaused, struct{}{})
	s.log.WithField("campaign_id", c.ID).Info("campaign paused")
	return c, nil
}

// Unpause reopens registrations.
func (s *Service) Unpause(ctx context.Context, campaignID, caller string) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.Campaign{}, err
	}
	if err := ownerGuard(c, caller); err != nil {
		return campaign.Campaign{}, err
	}
	if !c.Paused {
		return campaign.Campaign{}, campaign.ExpectedPauseError{}
	}

	c.Paused = false
	c, err = s.campaigns.UpdateCampaign(ctx, c)
	if err != nil {
		return campaign.Campaign{}, err
	}

	s.emit(ctx, c.ID, campaign.EventUnpaused, struct{}{})
	s.log.WithField("campaign_id", c.ID).Info("campaign unpaused")
	return c, nil
}

// EnableWhitelist turns access list gating on.
func (s *Service) EnableWhitelist(ctx context.Context, campaignID, caller string) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.Campaign{}, err
	}
	if err := ownerGuard(c, caller); err != nil {
		return campaign.Campaign{}, err
	}
	if c.WhitelistEnabled {
		return campaign.Campaign{}, campaign.EnforcedWhitelistError{}
	}

	c.WhitelistEnabled = true
	c, err = s.campaigns.UpdateCampaign(ctx, c)
	if err != nil {
		return campaign.Campaign{}, err
	}

	s.emit(ctx, c.ID, campaign.EventWhitelistTurnedOn, struct{}{})
	s.log.WithField("campaign_id", c.ID).Info("whitelist enabled")
	return c, nil
}

// DisableWhitelist turns access list gating off. Entries are kept.
func (s *Service) DisableWhitelist(ctx context.Context, campaignID, caller string) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.Campaign{}, err
	}
	if err := ownerGuard(c, caller); err != nil {
		return campaign.Campaign{}, err
	}
	if !c.WhitelistEnabled {
		return campaign.Campaign{}, campaign.ExpectedWhitelistError{}
	}

	c.WhitelistEnabled = false
	c, err = s.campaigns.UpdateCampaign(ctx, c)
	if err != nil {
		return campaign.Campaign{}, err
	}

	s.emit(ctx, c.ID, campaign.EventWhitelistTurnedOff, struct{}{})
	s.log.WithField("campaign_id", c.ID).Info("whitelist disabled")
	return c, nil
}

// AddToWhitelist adds one principal. Adding a present principal fails;
// the batch variant skips instead.
func (s *Service) AddToWhitelist(ctx context.Context, campaignID, caller, principal string) (campaign.AccessEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.AccessEntry{}, err
	}
	if err := ownerGuard(c, caller); err != nil {
		return campaign.AccessEntry{}, err
	}
	p, err := s.checkPrincipal(principal)
	if err != nil {
		return campaign.AccessEntry{}, err
	}

	if _, err := s.accessLists.GetAccessEntry(ctx, c.ID, p); err == nil {
		return campaign.AccessEntry{}, campaign.AlreadyWhitelistedError{Principal: p}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return campaign.AccessEntry{}, err
	}

	entry, err := s.accessLists.AddAccessEntry(ctx, campaign.AccessEntry{
		CampaignID: c.ID,
		Principal:  p,
		AddedAt:    time.Now().UTC(),
	})
	if err != nil {
		return campaign.AccessEntry{}, err
	}

	s.emit(ctx, c.ID, campaign.EventAddedToWhitelist, campaign.WhitelistEntryEvent{Principal: p})
	s.log.WithField("campaign_id", c.ID).
		WithField("principal", p).
		Info("principal whitelisted")
	return entry, nil
}

// AddBatchToWhitelist adds every absent principal and skips present ones.
// It returns the entries actually added. An empty batch is a no-op.
func (s *Service) AddBatchToWhitelist(ctx context.Context, campaignID, caller string, principals []string) ([]campaign.AccessEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if err := ownerGuard(c, caller); err != nil {
		return nil, err
	}

	normalized := make([]string, 0, len(principals))
	for _, raw := range principals {
		p, err := s.checkPrincipal(raw)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, p)
	}

	added := make([]campaign.AccessEntry, 0, len(normalized))
	for _, p := range normalized {
		if _, err := s.accessLists.GetAccessEntry(ctx, c.ID, p); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return added, err
		}
		entry, err := s.accessLists.AddAccessEntry(ctx, campaign.AccessEntry{
			CampaignID: c.ID,
			Principal:  p,
			AddedAt:    time.Now().UTC(),
		})
		if err != nil {
			return added, err
		}
		s.emit(ctx, c.ID, campaign.EventAddedToWhitelist, campaign.WhitelistEntryEvent{Principal: p})
		added = append(added, entry)
	}

	s.log.WithField("campaign_id", c.ID).
		WithField("requested", len(principals)).
		WithField("added", len(added)).
		Info("batch whitelist add")
	return added, nil
}

// RemoveFromWhitelist removes one principal. Removing an absent principal
// fails; the batch variant skips instead.
func (s *Service) RemoveFromWhitelist(ctx context.Context, campaignID, caller, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if err := ownerGuard(c, caller); err != nil {
		return err
	}
	p := strings.TrimSpace(principal)

	if _, err := s.accessLists.GetAccessEntry(ctx, c.ID, p); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return campaign.NotWhitelistedError{Principal: p}
		}
		return err
	}
	if err := s.accessLists.RemoveAccessEntry(ctx, c.ID, p); err != nil {
		return err
	}

	s.emit(ctx, c.ID, campaign.EventRemovedFromWhitelist, campaign.WhitelistEntryEvent{Principal: p})
	s.log.WithField("campaign_id", c.ID).
		WithField("principal", p).
		Info("principal removed from whitelist")
	return nil
}

// RemoveBatchFromWhitelist removes every present principal and skips
// absent ones. It returns the principals actually removed.
func (s *Service) RemoveBatchFromWhitelist(ctx context.Context, campaignID, caller string, principals []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if err := ownerGuard(c, caller); err != nil {
		return nil, err
	}

	removed := make([]string, 0, len(principals))
	for _, raw := range principals {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		if _, err := s.accessLists.GetAccessEntry(ctx, c.ID, p); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return removed, err
		}
		if err := s.accessLists.RemoveAccessEntry(ctx, c.ID, p); err != nil {
			return removed, err
		}
		s.emit(ctx, c.ID, campaign.EventRemovedFromWhitelist, campaign.WhitelistEntryEvent{Principal: p})
		removed = append(removed, p)
	}

	s.log.WithField("campaign_id", c.ID).
		WithField("requested", len(principals)).
		WithField("removed", len(removed)).
		Info("batch whitelist remove")
	return removed, nil
}

// IsWhitelisted reports access list membership. Membership is only
// consulted by Register while gating is enabled.
func (s *Service) IsWhitelisted(ctx context.Context, campaignID, principal string) (bool, error) {
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return false, err
	}
	_, err := s.accessLists.GetAccessEntry(ctx, campaignID, strings.TrimSpace(principal))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListWhitelist returns every access list entry of a campaign.
func (s *Service) ListWhitelist(ctx context.Context, campaignID string) ([]campaign.AccessEntry, error) {
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	entries, err := s.accessLists.ListAccessEntries(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Principal < entries[j].Principal })
	return entries, nil
}

// TransferOwnership proposes a new owner. Nothing changes hands until the
// candidate accepts; proposing again replaces the candidate.
func (s *Service) TransferOwnership(ctx context.Context, campaignID, caller, candidate string) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.Campaign{}, err
	}
	if err := ownerGuard(c, caller); err != nil {
		return campaign.Campaign{}, err
	}
	next, err := s.checkPrincipal(candidate)
	if err != nil {
		return campaign.Campaign{}, err
	}

	c.PendingOwner = next
	c, err = s.campaigns.UpdateCampaign(ctx, c)
	if err != nil {
		return campaign.Campaign{}, err
	}

	s.emit(ctx, c.ID, campaign.EventOwnershipTransferStarted, campaign.OwnershipTransferStartedEvent{
		CurrentOwner: c.Owner,
		PendingOwner: c.PendingOwner,
	})
	s.log.WithField("campaign_id", c.ID).
		WithField("pending_owner", c.PendingOwner).
		Info("ownership transfer started")
	return c, nil
}

// AcceptOwnership completes a proposed handover. Only the pending owner
// may call it; the previous owner keeps every right until this commits.
func (s *Service) AcceptOwnership(ctx context.Context, campaignID, caller string) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.Campaign{}, err
	}
	trimmed := strings.TrimSpace(caller)
	if c.PendingOwner == "" || trimmed != c.PendingOwner {
		return campaign.Campaign{}, campaign.NotPendingOwnerError{Caller: trimmed}
	}

	previous := c.Owner
	c.Owner = c.PendingOwner
	c.PendingOwner = ""
	c, err = s.campaigns.UpdateCampaign(ctx, c)
	if err != nil {
		return campaign.Campaign{}, err
	}

	s.emit(ctx, c.ID, campaign.EventOwnershipTransferred, campaign.OwnershipTransferredEvent{
		PreviousOwner: previous,
		NewOwner:      c.Owner,
	})
	s.log.WithField("campaign_id", c.ID).
		WithField("previous_owner", previous).
		WithField("owner", c.Owner).
		Info("ownership transferred")
	return c, nil
}

// Phase reports where the given timestamp falls in the campaign window.
func (s *Service) Phase(ctx context.Context, campaignID string, at time.Time) (campaign.Phase, error) {
	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return "", err
	}
	return c.Settings.PhaseAt(at), nil
}

// Get returns one campaign.
func (s *Service) Get(ctx context.Context, campaignID string) (campaign.Campaign, error) {
	return s.campaigns.GetCampaign(ctx, campaignID)
}

// List returns all campaigns, oldest first.
func (s *Service) List(ctx context.Context) ([]campaign.Campaign, error) {
	list, err := s.campaigns.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

// Registrations returns a campaign's ledger entries, oldest first.
func (s *Service) Registrations(ctx context.Context, campaignID string) ([]campaign.Registration, error) {
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	regs, err := s.campaigns.ListRegistrations(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].RegisteredAt.Equal(regs[j].RegisteredAt) {
			return regs[i].Principal < regs[j].Principal
		}
		return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
	})
	return regs, nil
}

// Events returns a campaign's audit trail in sequence order. A limit of
// zero returns everything.
func (s *Service) Events(ctx context.Context, campaignID string, limit int) ([]event.Event, error) {
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.recorder.List(ctx, campaignID, limit)
}

func (s *Service) checkPrincipal(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if err := s.validator.Validate(trimmed); err != nil {
		return "", campaign.InvalidPrincipalError{Principal: raw, Reason: err.Error()}
	}
	return trimmed, nil
}

func (s *Service) emit(ctx context.Context, campaignID, name string, payload any) {
	if _, err := s.recorder.Record(ctx, campaignID, name, payload); err != nil {
		s.log.WithError(err).
			WithField("campaign_id", campaignID).
			WithField("event", name).
			Error("record event failed")
	}
}

func ownerGuard(c campaign.Campaign, caller string) error {
	if strings.TrimSpace(caller) != c.Owner {
		return campaign.NotOwnerError{Caller: caller, Owner: c.Owner}
	}
	return nil
}
