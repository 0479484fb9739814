package campaign

import "time"

// Event names recorded on the campaign audit trail. The names and the field
// names of the payloads below are a compatibility contract: downstream
// consumers match on them.
const (
	EventCampaignCreated          = "CampaignCreated"
	EventRegistered               = "Registered"
	EventSettingsChanged          = "SettingsChanged"
	EventPaused                   = "Paused"
	EventUnpaused                 = "Unpaused"
	EventWhitelistTurnedOn        = "WhitelistTurnedOn"
	EventWhitelistTurnedOff       = "WhitelistTurnedOff"
	EventAddedToWhitelist         = "AddedToWhitelist"
	EventRemovedFromWhitelist     = "RemovedFromWhitelist"
	EventWithdrawal               = "Withdrawal"
	EventOwnershipTransferStarted = "OwnershipTransferStarted"
	EventOwnershipTransferred     = "OwnershipTransferred"
)

// CreatedEvent records the initial campaign parameters and owner.
type CreatedEvent struct {
	Owner            string    `json:"owner"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	MaxRegistrations int64     `json:"maxRegistrations"`
	RegistrationFee  int64     `json:"registrationFee"`
	WhitelistEnabled bool      `json:"whitelistEnabled"`
}

// RegisteredEvent records one accepted registration.
type RegisteredEvent struct {
	Caller    string    `json:"caller"`
	Timestamp time.Time `json:"timestamp"`
	PaidFee   int64     `json:"paidFee"`
}

// SettingsChangedEvent records a full settings replacement, old values first.
type SettingsChangedEvent struct {
	OldStartTime        time.Time `json:"oldStartTime"`
	OldEndTime          time.Time `json:"oldEndTime"`
	OldMaxRegistrations int64     `json:"oldMaxRegistrations"`
	OldRegistrationFee  int64     `json:"oldRegistrationFee"`
	NewStartTime        time.Time `json:"newStartTime"`
	NewEndTime          time.Time `json:"newEndTime"`
	NewMaxRegistrations int64     `json:"newMaxRegistrations"`
	NewRegistrationFee  int64     `json:"newRegistrationFee"`
}

// WhitelistEntryEvent records a single access list change. It is used for
// both AddedToWhitelist and RemovedFromWhitelist.
type WhitelistEntryEvent struct {
	Principal string `json:"principal"`
}

// WithdrawalEvent records a completed treasury payout.
type WithdrawalEvent struct {
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// OwnershipTransferStartedEvent records a proposed ownership handover.
type OwnershipTransferStartedEvent struct {
	CurrentOwner string `json:"currentOwner"`
	PendingOwner string `json:"pendingOwner"`
}

// OwnershipTransferredEvent records an accepted ownership handover.
type OwnershipTransferredEvent struct {
	PreviousOwner string `json:"previousOwner"`
	NewOwner      string `json:"newOwner"`
}
