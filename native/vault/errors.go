package vault

import (
	"errors"

	"pangivault/native/common"
)

// Kind groups failures by the class of rule that rejected the operation.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindTemporal      Kind = "temporal"
	KindArithmetic    Kind = "arithmetic"
	KindInternal      Kind = "internal"
)

// Error is a named ledger failure. Instances are package level sentinels so
// callers can match them with errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	return "vault engine: " + e.Message
}

// Unwrap exposes the shared arithmetic or guard error the failure maps onto.
func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrVaultAuthorityMismatch   = newError(KindAuthorization, "VaultAuthorityMismatch", "vault authority mismatch")
	ErrUnauthorized             = newError(KindAuthorization, "Unauthorized", "unauthorized")
	ErrOverflow                 = &Error{Kind: KindArithmetic, Code: "Overflow", Message: "arithmetic overflow", cause: common.ErrOverflow}
	ErrUnderflow                = &Error{Kind: KindArithmetic, Code: "Underflow", Message: "arithmetic underflow", cause: common.ErrUnderflow}
	ErrDivisionByZero           = &Error{Kind: KindArithmetic, Code: "DivisionByZero", Message: "division by zero", cause: common.ErrDivisionByZero}
	ErrAmountTooSmall           = newError(KindValidation, "AmountTooSmall", "amount below minimum stake")
	ErrAmountTooLarge           = newError(KindValidation, "AmountTooLarge", "amount above maximum stake")
	ErrInsufficientBalance      = newError(KindState, "InsufficientBalance", "insufficient token balance")
	ErrInsufficientStake        = newError(KindState, "InsufficientStake", "insufficient staked amount")
	ErrStillLocked              = newError(KindTemporal, "StillLocked", "stake is still locked")
	ErrRewardRateTooHigh        = newError(KindValidation, "RewardRateTooHigh", "reward rate exceeds maximum")
	ErrLockDurationTooShort     = newError(KindValidation, "LockDurationTooShort", "lock duration below minimum")
	ErrLockDurationTooLong      = newError(KindValidation, "LockDurationTooLong", "lock duration above maximum")
	ErrVaultInactive            = newError(KindState, "VaultInactive", "vault is inactive")
	ErrVaultAlreadyInactive     = newError(KindState, "VaultAlreadyInactive", "vault already inactive")
	ErrNoRewardsToClaim         = newError(KindState, "NoRewardsToClaim", "no rewards to claim")
	ErrInsufficientVaultBalance = newError(KindState, "InsufficientVaultBalance", "insufficient vault balance")
	ErrInvalidVaultAccount      = newError(KindValidation, "InvalidVaultAccount", "invalid vault account")
	ErrDepositCooldownActive    = newError(KindTemporal, "DepositCooldownActive", "deposit cooldown active")
	ErrClaimCooldownActive      = newError(KindTemporal, "ClaimCooldownActive", "claim cooldown active")
	ErrVaultExists              = newError(KindState, "VaultExists", "vault already exists")
	ErrVaultNotFound            = newError(KindState, "VaultNotFound", "vault not found")
	ErrStakeNotFound            = newError(KindState, "StakeNotFound", "stake record not found")
	ErrModulePaused             = &Error{Kind: KindState, Code: "ModulePaused", Message: "module paused", cause: common.ErrModulePaused}

	errNilState   = errors.New("vault engine: state not configured")
	errNilCustody = errors.New("vault engine: custody not configured")
)

// arithmetic converts a shared safe-math failure into the matching ledger error.
func arithmetic(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrOverflow):
		return ErrOverflow
	case errors.Is(err, common.ErrUnderflow):
		return ErrUnderflow
	case errors.Is(err, common.ErrDivisionByZero):
		return ErrDivisionByZero
	default:
		return err
	}
}

// KindOf classifies any error returned by the ledger.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr.Kind
	}
	switch {
	case errors.Is(err, common.ErrOverflow), errors.Is(err, common.ErrUnderflow), errors.Is(err, common.ErrDivisionByZero):
		return KindArithmetic
	case errors.Is(err, common.ErrModulePaused):
		return KindState
	}
	return KindInternal
}

// CodeOf returns the stable code of a ledger error, or "Internal".
func CodeOf(err error) string {
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr.Code
	}
	switch KindOf(err) {
	case KindArithmetic:
		return arithmeticCode(err)
	case KindState:
		return "ModulePaused"
	}
	return "Internal"
}

func arithmeticCode(err error) string {
	switch {
	case errors.Is(err, common.ErrOverflow):
		return "Overflow"
	case errors.Is(err, common.ErrUnderflow):
		return "Underflow"
	default:
		return "DivisionByZero"
	}
}
