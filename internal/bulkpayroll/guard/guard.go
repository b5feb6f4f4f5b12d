package guard

import (
	"errors"
	"time"

	"github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
)

var (
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrLeaseActive       = errors.New("lease_active")
)

var transitions = map[domain.BatchStatus][]domain.BatchStatus{
	domain.BatchStatusDraft: {
		domain.BatchStatusProcessing,
		domain.BatchStatusFailed,
	},
	domain.BatchStatusProcessing: {
		domain.BatchStatusPaused,
		domain.BatchStatusCompleted,
		domain.BatchStatusCompletedWithErrors,
		domain.BatchStatusFailed,
	},
	domain.BatchStatusPaused: {
		domain.BatchStatusProcessing,
	},
}

// CanTransition reports whether a batch may move from one status to another.
func CanTransition(from, to domain.BatchStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EnsureTransition is checked before every status write the driver makes.
func EnsureTransition(from, to domain.BatchStatus) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}

func EnsureBatchCanStart(status domain.BatchStatus) error {
	if status != domain.BatchStatusDraft {
		return domain.ErrBatchNotStartable
	}
	return nil
}

func EnsureBatchCanPause(status domain.BatchStatus) error {
	if !CanTransition(status, domain.BatchStatusPaused) {
		return domain.ErrBatchNotPausable
	}
	return nil
}

func EnsureBatchCanResume(status domain.BatchStatus) error {
	if status != domain.BatchStatusPaused {
		return domain.ErrBatchNotResumable
	}
	return nil
}

// EnsureLeaseExpired guards takeover of a processing batch by another driver.
func EnsureLeaseExpired(batch domain.Batch, now time.Time) error {
	if batch.Status != domain.BatchStatusProcessing {
		return domain.ErrBatchNotRecoverable
	}
	if batch.LeaseExpiresAt != nil && batch.LeaseExpiresAt.After(now) {
		return ErrLeaseActive
	}
	return nil
}

// FinalStatus is the outcome of a run that attempted every item.
func FinalStatus(failed int) domain.BatchStatus {
	if failed > 0 {
		return domain.BatchStatusCompletedWithErrors
	}
	return domain.BatchStatusCompleted
}
