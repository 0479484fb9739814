package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/R3E-Network/presale_layer/internal/app/domain/campaign"
	"github.com/R3E-Network/presale_layer/internal/app/domain/event"
	"github.com/R3E-Network/presale_layer/internal/app/domain/treasury"
	"github.com/R3E-Network/presale_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu              sync.RWMutex
	nextID          int64
	campaigns       map[string]campaign.Campaign
	registrations   map[string]map[string]campaign.Registration
	accessLists     map[string]map[string]campaign.AccessEntry
	events          map[string][]event.Event
	withdrawals     map[string][]treasury.Withdrawal
	withdrawalsByID map[string]treasury.Withdrawal
}

var _ storage.CampaignStore = (*Store)(nil)
var _ storage.AccessListStore = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)
var _ storage.WithdrawalStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:          1,
		campaigns:       make(map[string]campaign.Campaign),
		registrations:   make(map[string]map[string]campaign.Registration),
		accessLists:     make(map[string]map[string]campaign.AccessEntry),
		events:          make(map[string][]event.Event),
		withdrawals:     make(map[string][]treasury.Withdrawal),
		withdrawalsByID: make(map[string]treasury.Withdrawal),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// CampaignStore implementation ------------------------------------------------

func (s *Store) CreateCampaign(_ context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	} else if _, exists := s.campaigns[c.ID]; exists {
		return campaign.Campaign{}, fmt.Errorf("campaign %s already exists", c.ID)
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.campaigns[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCampaign(_ context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.campaigns[c.ID]
	if !ok {
		return campaign.Campaign{}, fmt.Errorf("campaign %s %w", c.ID, storage.ErrNotFound)
	}

	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	s.campaigns[c.ID] = c
	return c, nil
}

func (s *Store) GetCampaign(_ context.Context, id string) (campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return campaign.Campaign{}, fmt.Errorf("campaign %s %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCampaigns(_ context.Context) ([]campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]campaign.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		result = append(result, c)
	}
	return result, nil
}

func (s *Store) RecordRegistration(_ context.Context, c campaign.Campaign, reg campaign.Registration) (campaign.Campaign, campaign.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.campaigns[c.ID]
	if !ok {
		return campaign.Campaign{}, campaign.Registration{}, fmt.Errorf("campaign %s %w", c.ID, storage.ErrNotFound)
	}
	if _, exists := s.registrations[c.ID][reg.Principal]; exists {
		return campaign.Campaign{}, campaign.Registration{}, fmt.Errorf("registration for %s already exists", reg.Principal)
	}

	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	reg.CampaignID = c.ID

	if s.registrations[c.ID] == nil {
		s.registrations[c.ID] = make(map[string]campaign.Registration)
	}
	s.campaigns[c.ID] = c
	s.registrations[c.ID][reg.Principal] = reg
	return c, reg, nil
}

func (s *Store) GetRegistration(_ context.Context, campaignID, principal string) (campaign.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.registrations[campaignID][principal]
	if !ok {
		return campaign.Registration{}, fmt.Errorf("registration for %s %w", principal, storage.ErrNotFound)
	}
	return reg, nil
}

func (s *Store) ListRegistrations(_ context.Context, campaignID string) ([]campaign.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]campaign.Registration, 0, len(s.registrations[campaignID]))
	for _, reg := range s.registrations[campaignID] {
		result = append(result, reg)
	}
	return result, nil
}

// AccessListStore implementation ----------------------------------------------

func (s *Store) AddAccessEntry(_ context.Context, entry campaign.AccessEntry) (campaign.AccessEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accessLists[entry.CampaignID][entry.Principal]; exists {
		return campaign.AccessEntry{}, fmt.Errorf("access entry for %s already exists", entry.Principal)
	}

	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}
	if s.accessLists[entry.CampaignID] == nil {
		s.accessLists[entry.CampaignID] = make(map[string]campaign.AccessEntry)
	}
	s.accessLists[entry.CampaignID][entry.Principal] = entry
	return entry, nil
}

func (s *Store) RemoveAccessEntry(_ context.Context, campaignID, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accessLists[campaignID][principal]; !ok {
		return fmt.Errorf("access entry for %s %w", principal, storage.ErrNotFound)
	}
	delete(s.accessLists[campaignID], principal)
	return nil
}

func (s *Store) GetAccessEntry(_ context.Context, campaignID, principal string) (campaign.AccessEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.accessLists[campaignID][principal]
	if !ok {
		return campaign.AccessEntry{}, fmt.Errorf("access entry for %s %w", principal, storage.ErrNotFound)
	}
	return entry, nil
}

func (s *Store) ListAccessEntries(_ context.Context, campaignID string) ([]campaign.AccessEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]campaign.AccessEntry, 0, len(s.accessLists[campaignID]))
	for _, entry := range s.accessLists[campaignID] {
		result = append(result, entry)
	}
	return result, nil
}

// EventStore implementation ---------------------------------------------------

func (s *Store) AppendEvent(_ context.Context, evt event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.CampaignID == "" {
		return event.Event{}, fmt.Errorf("event campaign id is required")
	}
	if evt.ID == "" {
		evt.ID = s.nextIDLocked()
	}
	if evt.EmittedAt.IsZero() {
		evt.EmittedAt = time.Now().UTC()
	}

	trail := s.events[evt.CampaignID]
	evt.Sequence = int64(len(trail)) + 1
	evt.Data = cloneData(evt.Data)

	s.events[evt.CampaignID] = append(trail, evt)
	return cloneEvent(evt), nil
}

func (s *Store) ListEvents(_ context.Context, campaignID string, limit int) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trail := s.events[campaignID]
	if limit > 0 && len(trail) > limit {
		trail = trail[len(trail)-limit:]
	}
	result := make([]event.Event, 0, len(trail))
	for _, evt := range trail {
		result = append(result, cloneEvent(evt))
	}
	return result, nil
}

// WithdrawalStore implementation ----------------------------------------------

func (s *Store) CreateWithdrawal(_ context.Context, wd treasury.Withdrawal) (treasury.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wd.ID == "" {
		wd.ID = s.nextIDLocked()
	} else if _, exists := s.withdrawalsByID[wd.ID]; exists {
		return treasury.Withdrawal{}, fmt.Errorf("withdrawal %s already exists", wd.ID)
	}
	if wd.RequestedAt.IsZero() {
		wd.RequestedAt = time.Now().UTC()
	}

	s.withdrawals[wd.CampaignID] = append(s.withdrawals[wd.CampaignID], wd)
	s.withdrawalsByID[wd.ID] = wd
	return wd, nil
}

func (s *Store) UpdateWithdrawal(_ context.Context, wd treasury.Withdrawal) (treasury.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.withdrawalsByID[wd.ID]
	if !ok {
		return treasury.Withdrawal{}, fmt.Errorf("withdrawal %s %w", wd.ID, storage.ErrNotFound)
	}

	wd.RequestedAt = original.RequestedAt
	s.withdrawalsByID[wd.ID] = wd
	entries := s.withdrawals[wd.CampaignID]
	for i := range entries {
		if entries[i].ID == wd.ID {
			entries[i] = wd
			s.withdrawals[wd.CampaignID] = entries
			break
		}
	}
	return wd, nil
}

func (s *Store) GetWithdrawal(_ context.Context, id string) (treasury.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wd, ok := s.withdrawalsByID[id]
	if !ok {
		return treasury.Withdrawal{}, fmt.Errorf("withdrawal %s %w", id, storage.ErrNotFound)
	}
	return wd, nil
}

func (s *Store) ListWithdrawals(_ context.Context, campaignID string) ([]treasury.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]treasury.Withdrawal(nil), s.withdrawals[campaignID]...), nil
}

func (s *Store) ListPendingWithdrawals(_ context.Context) ([]treasury.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]treasury.Withdrawal, 0)
	for _, entries := range s.withdrawals {
		for _, wd := range entries {
			if wd.Status == treasury.StatusPending {
				result = append(result, wd)
			}
		}
	}
	return result, nil
}

// Helpers --------------------------------------------------------------------

func cloneData(src json.RawMessage) json.RawMessage {
	if len(src) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), src...)
}

func cloneEvent(evt event.Event) event.Event {
	evt.Data = cloneData(evt.Data)
	return evt
}
