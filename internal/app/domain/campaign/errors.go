package campaign

import (
	"errors"
	"fmt"
	"time"
)

// Category sentinels. Every guard failure wraps exactly one of these so
// callers can classify errors with errors.Is without matching on the
// concrete type.
var (
	// ErrNotAuthorized marks calls rejected because the caller lacks the
	// required role (owner-only or pending-owner-only operations).
	ErrNotAuthorized = errors.New("not authorized")

	// ErrPrecondition marks calls rejected because campaign state does not
	// admit them: wrong phase, duplicate registration, capacity or funds
	// violations, pause and whitelist toggles out of order.
	ErrPrecondition = errors.New("precondition failed")

	// ErrInvalidInput marks calls rejected before any state is consulted:
	// malformed principals, inverted date ranges, non-positive amounts.
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotAuthorized reports whether err is an authorization failure.
func IsNotAuthorized(err error) bool { return errors.Is(err, ErrNotAuthorized) }

// IsPrecondition reports whether err is a state-precondition failure.
func IsPrecondition(err error) bool { return errors.Is(err, ErrPrecondition) }

// IsInvalidInput reports whether err is an input-validity failure.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// NotOwnerError rejects an owner-only call from anyone else.
type NotOwnerError struct {
	Caller string
	Owner  string
}

func (e NotOwnerError) Error() string {
	return fmt.Sprintf("caller %q is not the campaign owner", e.Caller)
}

func (e NotOwnerError) Unwrap() error { return ErrNotAuthorized }

// NotPendingOwnerError rejects AcceptOwnership from anyone but the
// proposed owner.
type NotPendingOwnerError struct {
	Caller string
}

func (e NotPendingOwnerError) Error() string {
	return fmt.Sprintf("caller %q is not the pending owner", e.Caller)
}

func (e NotPendingOwnerError) Unwrap() error { return ErrNotAuthorized }

// IncorrectFeeError rejects a registration whose attached payment does not
// cover the fee.
type IncorrectFeeError struct {
	Attached int64
	Required int64
}

func (e IncorrectFeeError) Error() string {
	return fmt.Sprintf("attached payment %d below registration fee %d", e.Attached, e.Required)
}

func (e IncorrectFeeError) Unwrap() error { return ErrPrecondition }

// AlreadyRegisteredError rejects a second registration by the same
// principal. RegisteredAt carries the prior registration's timestamp.
type AlreadyRegisteredError struct {
	Caller       string
	RegisteredAt time.Time
}

func (e AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("principal %q already registered at %s", e.Caller, e.RegisteredAt.Format(time.RFC3339))
}

func (e AlreadyRegisteredError) Unwrap() error { return ErrPrecondition }

// NotWhitelistedError rejects a registration from an unlisted principal
// while the access list is enforced, and a removal of an absent entry.
type NotWhitelistedError struct {
	Principal string
}

func (e NotWhitelistedError) Error() string {
	return fmt.Sprintf("principal %q is not whitelisted", e.Principal)
}

func (e NotWhitelistedError) Unwrap() error { return ErrPrecondition }

// AlreadyWhitelistedError rejects a single add of a present entry. Batch
// adds skip duplicates instead of failing.
type AlreadyWhitelistedError struct {
	Principal string
}

func (e AlreadyWhitelistedError) Error() string {
	return fmt.Sprintf("principal %q is already whitelisted", e.Principal)
}

func (e AlreadyWhitelistedError) Unwrap() error { return ErrPrecondition }

// CampaignNotActiveError rejects a registration outside the window.
type CampaignNotActiveError struct {
	StartTime time.Time
	EndTime   time.Time
}

func (e CampaignNotActiveError) Error() string {
	return fmt.Sprintf("campaign not active: window %s to %s",
		e.StartTime.Format(time.RFC3339), e.EndTime.Format(time.RFC3339))
}

func (e CampaignNotActiveError) Unwrap() error { return ErrPrecondition }

// CapacityExceededError rejects a registration when every slot is taken.
type CapacityExceededError struct {
	Count int64
	Max   int64
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d of %d registrations used", e.Count, e.Max)
}

func (e CapacityExceededError) Unwrap() error { return ErrPrecondition }

// EnforcedPauseError rejects an operation that requires the campaign to be
// running: registering while paused, or pausing twice.
type EnforcedPauseError struct{}

func (e EnforcedPauseError) Error() string { return "campaign is paused" }

func (e EnforcedPauseError) Unwrap() error { return ErrPrecondition }

// ExpectedPauseError rejects unpausing a campaign that is not paused.
type ExpectedPauseError struct{}

func (e ExpectedPauseError) Error() string { return "campaign is not paused" }

func (e ExpectedPauseError) Unwrap() error { return ErrPrecondition }

// EnforcedWhitelistError rejects enabling an already-enabled access list.
type EnforcedWhitelistError struct{}

func (e EnforcedWhitelistError) Error() string { return "whitelist is already enabled" }

func (e EnforcedWhitelistError) Unwrap() error { return ErrPrecondition }

// ExpectedWhitelistError rejects disabling an already-disabled access list.
type ExpectedWhitelistError struct{}

func (e ExpectedWhitelistError) Error() string { return "whitelist is not enabled" }

func (e ExpectedWhitelistError) Unwrap() error { return ErrPrecondition }

// IncorrectDatesError rejects a window whose start falls after its end.
type IncorrectDatesError struct {
	StartTime time.Time
	EndTime   time.Time
}

func (e IncorrectDatesError) Error() string {
	return fmt.Sprintf("start time %s after end time %s",
		e.StartTime.Format(time.RFC3339), e.EndTime.Format(time.RFC3339))
}

func (e IncorrectDatesError) Unwrap() error { return ErrInvalidInput }

// InvalidCapacityError rejects a settings update that would shrink capacity
// below the registrations already accepted.
type InvalidCapacityError struct {
	Max   int64
	Count int64
}

func (e InvalidCapacityError) Error() string {
	return fmt.Sprintf("capacity %d below current registration count %d", e.Max, e.Count)
}

func (e InvalidCapacityError) Unwrap() error { return ErrPrecondition }

// NotEnoughFundsError rejects a withdrawal exceeding the treasury balance.
type NotEnoughFundsError struct {
	Amount  int64
	Balance int64
}

func (e NotEnoughFundsError) Error() string {
	return fmt.Sprintf("withdrawal %d exceeds balance %d", e.Amount, e.Balance)
}

func (e NotEnoughFundsError) Unwrap() error { return ErrPrecondition }

// WithdrawalInProgressError rejects a withdrawal while an earlier one is
// still settling. The latch is the re-entrancy guard on the payout path.
type WithdrawalInProgressError struct{}

func (e WithdrawalInProgressError) Error() string { return "withdrawal already in progress" }

func (e WithdrawalInProgressError) Unwrap() error { return ErrPrecondition }

// InvalidPrincipalError rejects a principal the configured validator does
// not accept.
type InvalidPrincipalError struct {
	Principal string
	Reason    string
}

func (e InvalidPrincipalError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid principal %q", e.Principal)
	}
	return fmt.Sprintf("invalid principal %q: %s", e.Principal, e.Reason)
}

func (e InvalidPrincipalError) Unwrap() error { return ErrInvalidInput }
