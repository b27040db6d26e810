package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the registry, synchronizer and
// aggregator so the HTTP layer can tell them apart.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindValidation means the address failed the format or existence check.
	KindValidation
	// KindExternalService means the ledger source could not be reached or
	// answered with a non-success status.
	KindExternalService
	// KindDataIntegrity means the ledger response lacked a required field.
	KindDataIntegrity
	// KindPersistence means a store operation failed.
	KindPersistence
	KindNotFound
	KindConflict
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindExternalService:
		return "external_service"
	case KindDataIntegrity:
		return "data_integrity"
	case KindPersistence:
		return "persistence"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Error is a classified error carrying the operation that produced it
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a classified error. A nil err yields nil.
func E(op string, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Sentinels wrapped by the components.
var (
	ErrInvalidAddress     = errors.New("invalid address")
	ErrAddressClaimed     = errors.New("address already registered")
	ErrAddressNotFound    = errors.New("address not found")
	ErrNoTransactionList  = errors.New("ledger response has no transaction list")
	ErrNoFinalBalance     = errors.New("ledger response has no final balance")
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)
