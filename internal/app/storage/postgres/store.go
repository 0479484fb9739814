package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/presale_layer/internal/app/domain/campaign"
	"github.com/R3E-Network/presale_layer/internal/app/domain/event"
	"github.com/R3E-Network/presale_layer/internal/app/domain/treasury"
	"github.com/R3E-Network/presale_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.CampaignStore = (*Store)(nil)
var _ storage.AccessListStore = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)
var _ storage.WithdrawalStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type campaignRow struct {
	ID                string    `db:"id"`
	Name              string    `db:"name"`
	Owner             string    `db:"owner"`
	PendingOwner      string    `db:"pending_owner"`
	StartTime         time.Time `db:"start_time"`
	EndTime           time.Time `db:"end_time"`
	MaxRegistrations  int64     `db:"max_registrations"`
	RegistrationFee   int64     `db:"registration_fee"`
	RegistrationCount int64     `db:"registration_count"`
	Balance           int64     `db:"balance"`
	Paused            bool      `db:"paused"`
	WhitelistEnabled  bool      `db:"whitelist_enabled"`
	WithdrawLocked    bool      `db:"withdraw_locked"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func campaignToRow(c campaign.Campaign) campaignRow {
	return campaignRow{
		ID:                c.ID,
		Name:              c.Name,
		Owner:             c.Owner,
		PendingOwner:      c.PendingOwner,
		StartTime:         c.Settings.StartTime,
		EndTime:           c.Settings.EndTime,
		MaxRegistrations:  c.Settings.MaxRegistrations,
		RegistrationFee:   c.Settings.RegistrationFee,
		RegistrationCount: c.RegistrationCount,
		Balance:           c.Balance,
		Paused:            c.Paused,
		WhitelistEnabled:  c.WhitelistEnabled,
		WithdrawLocked:    c.WithdrawLocked,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func (r campaignRow) toCampaign() campaign.Campaign {
	return campaign.Campaign{
		ID:           r.ID,
		Name:         r.Name,
		Owner:        r.Owner,
		PendingOwner: r.PendingOwner,
		Settings: campaign.Settings{
			StartTime:        r.StartTime.UTC(),
			EndTime:          r.EndTime.UTC(),
			MaxRegistrations: r.MaxRegistrations,
			RegistrationFee:  r.RegistrationFee,
		},
		RegistrationCount: r.RegistrationCount,
		Balance:           r.Balance,
		Paused:            r.Paused,
		WhitelistEnabled:  r.WhitelistEnabled,
		WithdrawLocked:    r.WithdrawLocked,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

// --- CampaignStore -----------------------------------------------------------

func (s *Store) CreateCampaign(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO presale_campaigns (id, name, owner, pending_owner, start_time, end_time, max_registrations, registration_fee, registration_count, balance, paused, whitelist_enabled, withdraw_locked, created_at, updated_at)
		VALUES (:id, :name, :owner, :pending_owner, :start_time, :end_time, :max_registrations, :registration_fee, :registration_count, :balance, :paused, :whitelist_enabled, :withdraw_locked, :created_at, :updated_at)
	`, campaignToRow(c))
	if err != nil {
		return campaign.Campaign{}, err
	}
	return c, nil
}

func (s *Store) UpdateCampaign(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	existing, err := s.GetCampaign(ctx, c.ID)
	if err != nil {
		return campaign.Campaign{}, err
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.NamedExecContext(ctx, `
		UPDATE presale_campaigns
		SET name = :name, owner = :owner, pending_owner = :pending_owner, start_time = :start_time, end_time = :end_time, max_registrations = :max_registrations, registration_fee = :registration_fee, registration_count = :registration_count, balance = :balance, paused = :paused, whitelist_enabled = :whitelist_enabled, withdraw_locked = :withdraw_locked, updated_at = :updated_at
		WHERE id = :id
	`, campaignToRow(c))
	if err != nil {
		return campaign.Campaign{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return campaign.Campaign{}, fmt.Errorf("campaign %s %w", c.ID, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (campaign.Campaign, error) {
	var row campaignRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, owner, pending_owner, start_time, end_time, max_registrations, registration_fee, registration_count, balance, paused, whitelist_enabled, withdraw_locked, created_at, updated_at
		FROM presale_campaigns
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.Campaign{}, fmt.Errorf("campaign %s %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return campaign.Campaign{}, err
	}
	return row.toCampaign(), nil
}

func (s *Store) ListCampaigns(ctx context.Context) ([]campaign.Campaign, error) {
	var rows []campaignRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, owner, pending_owner, start_time, end_time, max_registrations, registration_fee, registration_count, balance, paused, whitelist_enabled, withdraw_locked, created_at, updated_at
		FROM presale_campaigns
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}

	result := make([]campaign.Campaign, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toCampaign())
	}
	return result, nil
}

type registrationRow struct {
	CampaignID   string    `db:"campaign_id"`
	Principal    string    `db:"principal"`
	RegisteredAt time.Time `db:"registered_at"`
	PaidFee      int64     `db:"paid_fee"`
}

func (r registrationRow) toRegistration() campaign.Registration {
	return campaign.Registration{
		CampaignID:   r.CampaignID,
		Principal:    r.Principal,
		Registered:   true,
		RegisteredAt: r.RegisteredAt.UTC(),
		PaidFee:      r.PaidFee,
	}
}

func (s *Store) RecordRegistration(ctx context.Context, c campaign.Campaign, reg campaign.Registration) (campaign.Campaign, campaign.Registration, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return campaign.Campaign{}, campaign.Registration{}, err
	}
	defer tx.Rollback()

	c.UpdatedAt = time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE presale_campaigns
		SET registration_count = $2, balance = $3, updated_at = $4
		WHERE id = $1
	`, c.ID, c.RegistrationCount, c.Balance, c.UpdatedAt)
	if err != nil {
		return campaign.Campaign{}, campaign.Registration{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return campaign.Campaign{}, campaign.Registration{}, fmt.Errorf("campaign %s %w", c.ID, storage.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO presale_registrations (campaign_id, principal, registered_at, paid_fee)
		VALUES ($1, $2, $3, $4)
	`, reg.CampaignID, reg.Principal, reg.RegisteredAt, reg.PaidFee)
	if err != nil {
		return campaign.Campaign{}, campaign.Registration{}, err
	}

	if err := tx.Commit(); err != nil {
		return campaign.Campaign{}, campaign.Registration{}, err
	}
	reg.Registered = true
	return c, reg, nil
}

func (s *Store) GetRegistration(ctx context.Context, campaignID, principal string) (campaign.Registration, error) {
	var row registrationRow
	err := s.db.GetContext(ctx, &row, `
		SELECT campaign_id, principal, registered_at, paid_fee
		FROM presale_registrations
		WHERE campaign_id = $1 AND principal = $2
	`, campaignID, principal)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.Registration{}, fmt.Errorf("registration for %s %w", principal, storage.ErrNotFound)
	}
	if err != nil {
		return campaign.Registration{}, err
	}
	return row.toRegistration(), nil
}

func (s *Store) ListRegistrations(ctx context.Context, campaignID string) ([]campaign.Registration, error) {
	var rows []registrationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT campaign_id, principal, registered_at, paid_fee
		FROM presale_registrations
		WHERE campaign_id = $1
		ORDER BY registered_at, principal
	`, campaignID)
	if err != nil {
		return nil, err
	}

	result := make([]campaign.Registration, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toRegistration())
	}
	return result, nil
}

// --- AccessListStore ---------------------------------------------------------

type accessEntryRow struct {
	CampaignID string    `db:"campaign_id"`
	Principal  string    `db:"principal"`
	AddedAt    time.Time `db:"added_at"`
}

func (r accessEntryRow) toEntry() campaign.AccessEntry {
	return campaign.AccessEntry{
		CampaignID: r.CampaignID,
		Principal:  r.Principal,
		AddedAt:    r.AddedAt.UTC(),
	}
}

func (s *Store) AddAccessEntry(ctx context.Context, entry campaign.AccessEntry) (campaign.AccessEntry, error) {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presale_access_entries (campaign_id, principal, added_at)
		VALUES ($1, $2, $3)
	`, entry.CampaignID, entry.Principal, entry.AddedAt)
	if err != nil {
		return campaign.AccessEntry{}, err
	}
	return entry, nil
}

func (s *Store) RemoveAccessEntry(ctx context.Context, campaignID, principal string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM presale_access_entries WHERE campaign_id = $1 AND principal = $2
	`, campaignID, principal)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("access entry for %s %w", principal, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) GetAccessEntry(ctx context.Context, campaignID, principal string) (campaign.AccessEntry, error) {
	var row accessEntryRow
	err := s.db.GetContext(ctx, &row, `
		SELECT campaign_id, principal, added_at
		FROM presale_access_entries
		WHERE campaign_id = $1 AND principal = $2
	`, campaignID, principal)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.AccessEntry{}, fmt.Errorf("access entry for %s %w", principal, storage.ErrNotFound)
	}
	if err != nil {
		return campaign.AccessEntry{}, err
	}
	return row.toEntry(), nil
}

func (s *Store) ListAccessEntries(ctx context.Context, campaignID string) ([]campaign.AccessEntry, error) {
	var rows []accessEntryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT campaign_id, principal, added_at
		FROM presale_access_entries
		WHERE campaign_id = $1
		ORDER BY principal
	`, campaignID)
	if err != nil {
		return nil, err
	}

	result := make([]campaign.AccessEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toEntry())
	}
	return result, nil
}

// --- EventStore --------------------------------------------------------------

type eventRow struct {
	ID         string    `db:"id"`
	CampaignID string    `db:"campaign_id"`
	Sequence   int64     `db:"sequence"`
	Name       string    `db:"name"`
	Data       []byte    `db:"data"`
	EmittedAt  time.Time `db:"emitted_at"`
}

func (r eventRow) toEvent() event.Event {
	return event.Event{
		ID:         r.ID,
		CampaignID: r.CampaignID,
		Sequence:   r.Sequence,
		Name:       r.Name,
		Data:       r.Data,
		EmittedAt:  r.EmittedAt.UTC(),
	}
}

func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if evt.CampaignID == "" {
		return event.Event{}, errors.New("event campaign id is required")
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.EmittedAt.IsZero() {
		evt.EmittedAt = time.Now().UTC()
	}

	// jsonb rejects bytea parameters, so the payload travels as text.
	var data any
	if len(evt.Data) > 0 {
		data = string(evt.Data)
	}

	// The unique (campaign_id, sequence) index backstops concurrent appends
	// computing the same next sequence.
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO presale_events (id, campaign_id, sequence, name, data, emitted_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(sequence), 0) + 1 FROM presale_events WHERE campaign_id = $2), $3, $4, $5)
		RETURNING sequence
	`, evt.ID, evt.CampaignID, evt.Name, data, evt.EmittedAt)
	if err := row.Scan(&evt.Sequence); err != nil {
		return event.Event{}, err
	}
	return evt, nil
}

func (s *Store) ListEvents(ctx context.Context, campaignID string, limit int) ([]event.Event, error) {
	var (
		rows []eventRow
		err  error
	)
	if limit > 0 {
		// A limit keeps the newest events; reorder to sequence order below.
		err = s.db.SelectContext(ctx, &rows, `
			SELECT id, campaign_id, sequence, name, data, emitted_at
			FROM presale_events
			WHERE campaign_id = $1
			ORDER BY sequence DESC
			LIMIT $2
		`, campaignID, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT id, campaign_id, sequence, name, data, emitted_at
			FROM presale_events
			WHERE campaign_id = $1
			ORDER BY sequence
		`, campaignID)
	}
	if err != nil {
		return nil, err
	}

	result := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toEvent())
	}
	if limit > 0 {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	return result, nil
}

// --- WithdrawalStore ---------------------------------------------------------

type withdrawalRow struct {
	ID          string       `db:"id"`
	CampaignID  string       `db:"campaign_id"`
	Amount      int64        `db:"amount"`
	To          string       `db:"payee"`
	Status      string       `db:"status"`
	TxID        string       `db:"tx_id"`
	Message     string       `db:"message"`
	RequestedAt time.Time    `db:"requested_at"`
	SettledAt   sql.NullTime `db:"settled_at"`
}

func (r withdrawalRow) toWithdrawal() treasury.Withdrawal {
	wd := treasury.Withdrawal{
		ID:          r.ID,
		CampaignID:  r.CampaignID,
		Amount:      r.Amount,
		To:          r.To,
		Status:      treasury.WithdrawalStatus(r.Status),
		TxID:        r.TxID,
		Message:     r.Message,
		RequestedAt: r.RequestedAt.UTC(),
	}
	if r.SettledAt.Valid {
		wd.SettledAt = r.SettledAt.Time.UTC()
	}
	return wd
}

func (s *Store) CreateWithdrawal(ctx context.Context, wd treasury.Withdrawal) (treasury.Withdrawal, error) {
	if wd.ID == "" {
		wd.ID = uuid.NewString()
	}
	if wd.RequestedAt.IsZero() {
		wd.RequestedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presale_withdrawals (id, campaign_id, amount, payee, status, tx_id, message, requested_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, wd.ID, wd.CampaignID, wd.Amount, wd.To, string(wd.Status), wd.TxID, wd.Message, wd.RequestedAt, toNullTime(wd.SettledAt))
	if err != nil {
		return treasury.Withdrawal{}, err
	}
	return wd, nil
}

func (s *Store) UpdateWithdrawal(ctx context.Context, wd treasury.Withdrawal) (treasury.Withdrawal, error) {
	existing, err := s.GetWithdrawal(ctx, wd.ID)
	if err != nil {
		return treasury.Withdrawal{}, err
	}
	wd.CampaignID = existing.CampaignID
	wd.RequestedAt = existing.RequestedAt

	result, err := s.db.ExecContext(ctx, `
		UPDATE presale_withdrawals
		SET amount = $2, payee = $3, status = $4, tx_id = $5, message = $6, settled_at = $7
		WHERE id = $1
	`, wd.ID, wd.Amount, wd.To, string(wd.Status), wd.TxID, wd.Message, toNullTime(wd.SettledAt))
	if err != nil {
		return treasury.Withdrawal{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return treasury.Withdrawal{}, fmt.Errorf("withdrawal %s %w", wd.ID, storage.ErrNotFound)
	}
	return wd, nil
}

func (s *Store) GetWithdrawal(ctx context.Context, id string) (treasury.Withdrawal, error) {
	var row withdrawalRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, campaign_id, amount, payee, status, tx_id, message, requested_at, settled_at
		FROM presale_withdrawals
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return treasury.Withdrawal{}, fmt.Errorf("withdrawal %s %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return treasury.Withdrawal{}, err
	}
	return row.toWithdrawal(), nil
}

func (s *Store) ListWithdrawals(ctx context.Context, campaignID string) ([]treasury.Withdrawal, error) {
	return s.selectWithdrawals(ctx, `
		SELECT id, campaign_id, amount, payee, status, tx_id, message, requested_at, settled_at
		FROM presale_withdrawals
		WHERE campaign_id = $1
		ORDER BY requested_at
	`, campaignID)
}

func (s *Store) ListPendingWithdrawals(ctx context.Context) ([]treasury.Withdrawal, error) {
	return s.selectWithdrawals(ctx, `
		SELECT id, campaign_id, amount, payee, status, tx_id, message, requested_at, settled_at
		FROM presale_withdrawals
		WHERE status = 'pending'
		ORDER BY requested_at
	`)
}

func (s *Store) selectWithdrawals(ctx context.Context, query string, args ...any) ([]treasury.Withdrawal, error) {
	var rows []withdrawalRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]treasury.Withdrawal, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toWithdrawal())
	}
	return result, nil
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
