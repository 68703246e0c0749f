package domain

import (
	"context"
	"errors"
)

var (
	// ErrInvalidAmount amount is zero, negative or finer than the ledger precision
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidKind entry kind is neither credit nor debit
	ErrInvalidKind = errors.New("invalid entry kind")

	// ErrInvalidRequest request fields other than amount/kind failed validation
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAccountNotFound account does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists account id is already taken
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrInsufficientFunds debit exceeds the current balance
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrStorageFailure durable write or read could not complete
	ErrStorageFailure = errors.New("storage failure")

	// ErrConcurrencyConflict the account changed between read and write
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrEntryNotFound no entry with that id on the account
	ErrEntryNotFound = errors.New("entry not found")

	// ErrDuplicateReference ref id already committed with different content
	ErrDuplicateReference = errors.New("duplicate reference id")

	// ErrCanceled the caller gave up before the entry was committed
	ErrCanceled = errors.New("apply canceled before commit")
)

// ErrorKind classifies ledger failures for callers that map them onto a transport.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindInvalidAmount       ErrorKind = "InvalidAmount"
	KindInvalidRequest      ErrorKind = "InvalidRequest"
	KindAccountNotFound     ErrorKind = "AccountNotFound"
	KindAccountExists       ErrorKind = "AccountAlreadyExists"
	KindInsufficientFunds   ErrorKind = "InsufficientFunds"
	KindStorageFailure      ErrorKind = "StorageFailure"
	KindConcurrencyConflict ErrorKind = "ConcurrencyConflict"
	KindEntryNotFound       ErrorKind = "EntryNotFound"
	KindDuplicateReference  ErrorKind = "DuplicateReference"
	KindCanceled            ErrorKind = "Canceled"
)

var kindBySentinel = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrInvalidKind, KindInvalidRequest},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrAccountAlreadyExists, KindAccountExists},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrConcurrencyConflict, KindConcurrencyConflict},
	{ErrEntryNotFound, KindEntryNotFound},
	{ErrDuplicateReference, KindDuplicateReference},
	{ErrCanceled, KindCanceled},
	{context.Canceled, KindCanceled},
	{context.DeadlineExceeded, KindCanceled},
	{ErrStorageFailure, KindStorageFailure},
}

// KindOf maps an error onto its ErrorKind.
//
// Unknown errors are treated as StorageFailure; nil maps to KindNone.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, s := range kindBySentinel {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindStorageFailure
}

// Retryable reports whether the same request may be resent unchanged.
func (k ErrorKind) Retryable() bool {
	return k == KindStorageFailure || k == KindConcurrencyConflict
}
