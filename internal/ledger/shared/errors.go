// Package shared holds sentinel errors crossing ledger package boundaries.
package shared

import "errors"

var (
	// ErrUnbalanced rejects an entry whose debits and credits differ.
	ErrUnbalanced = errors.New("ledger: entry debits and credits are not equal")
	// ErrTooFewLines rejects an entry with fewer than two lines.
	ErrTooFewLines = errors.New("ledger: entry requires at least two lines")
	// ErrInvalidAccount rejects a line against an unknown, inactive, or
	// header account.
	ErrInvalidAccount = errors.New("ledger: account not postable")

	// ErrDuplicateCode signals an account code already taken for the tenant.
	ErrDuplicateCode = errors.New("ledger: account code already exists")
	// ErrAccountNotFound signals an unknown account code.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAccountInUse refuses deletion of an account with posted lines.
	ErrAccountInUse = errors.New("ledger: account has posted lines")

	// ErrPeriodOverlap refuses a period range intersecting an existing one.
	ErrPeriodOverlap = errors.New("ledger: period overlaps an existing period")
	// ErrNoPeriodDefined signals a posting date no period covers.
	ErrNoPeriodDefined = errors.New("ledger: no period covers the posting date")
	// ErrPeriodLocked refuses postings into a closed or locked period.
	ErrPeriodLocked = errors.New("ledger: period does not accept postings")
	// ErrInvalidTransition refuses a period status change outside the
	// open, closed, locked order.
	ErrInvalidTransition = errors.New("ledger: invalid period transition")

	// ErrPartitionMissing signals no storage partition covers the date.
	ErrPartitionMissing = errors.New("ledger: no partition covers the posting date")

	// ErrAlreadyVoid refuses a second void of the same entry.
	ErrAlreadyVoid = errors.New("ledger: entry already void")
	// ErrJournalNotFound signals an unknown journal entry.
	ErrJournalNotFound = errors.New("ledger: journal entry not found")

	// ErrOverApplication refuses a payment exceeding the remaining balance.
	ErrOverApplication = errors.New("ledger: payment exceeds remaining balance")
	// ErrItemNotFound signals an unknown open item.
	ErrItemNotFound = errors.New("ledger: open item not found")

	// ErrIntegrity reports a divergence between the balance cache and the
	// journal lines it is derived from.
	ErrIntegrity = errors.New("ledger: balance cache diverges from journal")
)
