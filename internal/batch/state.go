package batch

import (
	"errors"
	"fmt"

	"github.com/yeleman/anam-desktop/internal/domain"
)

// State of a batch run
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateImporting
	StateCommitting
	StateFinalizing
	StateSucceeded
	StatePartiallyFailed
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StateConnecting:      "connecting",
	StateImporting:       "importing",
	StateCommitting:      "committing",
	StateFinalizing:      "finalizing",
	StateSucceeded:       "succeeded",
	StatePartiallyFailed: "partially_failed",
	StateFailed:          "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StatePartiallyFailed || s == StateFailed
}

// Progress snapshot of a running batch. Index is the 1-based record being
// imported, 0 outside of the import loop.
type Progress struct {
	RunID     string `json:"run_id"`
	CollectID string `json:"collect_id"`
	State     State  `json:"-"`
	StateName string `json:"state"`
	Total     int    `json:"total"`
	Index     int    `json:"index"`
	Processed int    `json:"processed"`
	Committed int    `json:"committed"`
}

// Report outcome of a batch run
type Report struct {
	RunID     string
	CollectID string
	State     State
	Total     int
	// Processed records imported without error, committed or not
	Processed int
	// Committed records durably written, they survive any later failure
	Committed int
	// RolledBack records whose rows were discarded
	RolledBack  int
	FailedIndex int
	FailedIdent string
	Identifiers domain.IdentifierMap
	Err         error
}

// DataWritten reports whether any record reached the case database
func (r *Report) DataWritten() bool { return r.Committed > 0 }

// Message describes the outcome in plain language, always stating whether
// data was written and how much.
func (r *Report) Message() string {
	switch r.State {
	case StateSucceeded:
		return fmt.Sprintf("Import complete: %d of %d records committed and the dataset was marked imported.",
			r.Committed, r.Total)

	case StatePartiallyFailed:
		return fmt.Sprintf("All %d records were committed to the case database, but the dataset service "+
			"was not told (%v). Mark the dataset imported manually; do not import it again.",
			r.Committed, r.Err)

	case StateFailed:
		var commitErr *domain.CommitError
		var connErr *domain.ConnectionError
		switch {
		case errors.As(r.Err, &connErr):
			return fmt.Sprintf("Nothing was written: %v.", r.Err)

		case errors.As(r.Err, &commitErr):
			if commitErr.Safe() {
				return fmt.Sprintf("Commit failed (%v). Nothing was written; %d records were rolled back "+
					"and the whole dataset can be imported again.", commitErr.Err, r.RolledBack)
			}
			return fmt.Sprintf("Commit failed (%v). WARNING: %d records committed and cannot be rolled back; "+
				"%d records were rolled back. Do not import the whole dataset again.",
				commitErr.Err, r.Committed, r.RolledBack)

		default:
			failed := fmt.Sprintf("Record %d", r.FailedIndex)
			if r.FailedIdent != "" {
				failed = fmt.Sprintf("Record %d (%s)", r.FailedIndex, r.FailedIdent)
			}
			if r.Committed == 0 {
				return fmt.Sprintf("%s failed: %v. Nothing was written; %d records were rolled back.",
					failed, r.Err, r.RolledBack)
			}
			return fmt.Sprintf("%s failed: %v. WARNING: %d records committed and cannot be rolled back; "+
				"%d records were rolled back.", failed, r.Err, r.Committed, r.RolledBack)
		}
	}
	return fmt.Sprintf("Import %s: %d of %d records processed.", r.State, r.Processed, r.Total)
}
