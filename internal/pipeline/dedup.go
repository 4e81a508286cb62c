package pipeline

import (
	"github.com/craterhub/downloads-accounting/internal/domain"
)

// Dedup decides which pending download events are first-seen and which are
// repeats of something already in the history ledger.
//
// An event is a duplicate when some history record for the same project
// shares its identity (IP address, or user ID when present) and either the
// version matches exactly or the identity has already reached the per-window
// cap across the project's versions. Same identity re-downloading the same
// version is always a repeat; spreading downloads across versions of one
// project is allowed up to the cap.
type Dedup struct {
	maxPerIdentity int
}

// NewDedup creates a dedup engine with the given per-identity cap
func NewDedup(maxPerIdentity int) *Dedup {
	return &Dedup{maxPerIdentity: maxPerIdentity}
}

// Filter returns the accepted subset of pending, in arrival order.
// Accepted events are appended to the in-memory history as the batch is
// scanned, so later events in the same batch are deduplicated against
// earlier acceptances. The caller's history slice is not modified.
func (d *Dedup) Filter(pending, history []domain.DownloadEvent) []domain.DownloadEvent {
	ledger := make([]domain.DownloadEvent, len(history), len(history)+len(pending))
	copy(ledger, history)

	accepted := make([]domain.DownloadEvent, 0, len(pending))

	for _, e := range pending {
		if d.isDuplicate(&e, ledger) {
			continue
		}
		ledger = append(ledger, e)
		accepted = append(accepted, e)
	}

	return accepted
}

// isDuplicate scans the ledger for a record that makes e a repeat.
// O(history) per event; the ledger lives for at most one history window so
// the scan stays small in practice.
func (d *Dedup) isDuplicate(e *domain.DownloadEvent, ledger []domain.DownloadEvent) bool {
	var priorUserCount, priorIPCount int
	for i := range ledger {
		h := &ledger[i]
		if h.ProjectID != e.ProjectID {
			continue
		}
		if !e.Anonymous() && h.UserID == e.UserID {
			priorUserCount++
		}
		if h.IPAddress == e.IPAddress {
			priorIPCount++
		}
	}
	capReached := priorUserCount >= d.maxPerIdentity || priorIPCount >= d.maxPerIdentity

	for i := range ledger {
		h := &ledger[i]
		if h.ID == e.ID || h.ProjectID != e.ProjectID {
			continue
		}
		sameIdentity := h.IPAddress == e.IPAddress || (!e.Anonymous() && h.UserID == e.UserID)
		if !sameIdentity {
			continue
		}
		if h.VersionID == e.VersionID || capReached {
			return true
		}
	}

	return false
}
