package domain

import (
	"errors"
	"fmt"
)

// ErrIneligible the survey record is not flagged indigent
var ErrIneligible = errors.New("record is not flagged eligible")

// ErrDuplicateIdent the ident already appeared earlier in the dataset
var ErrDuplicateIdent = errors.New("ident repeated in dataset")

// ValidationError malformed or ineligible survey record
type ValidationError struct {
	Ident string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Ident == "" {
		return fmt.Sprintf("invalid survey record: %v", e.Err)
	}
	return fmt.Sprintf("invalid survey record %s: %v", e.Ident, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// LocationError a mandatory location could not be resolved
type LocationError struct {
	Commune string
	Cercle  string
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("unknown commune %q in cercle %q", e.Commune, e.Cercle)
}

// ConnectionError store or remote service unreachable
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("unable to connect to %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// InsertError a single statement failed
type InsertError struct {
	Table string
	Err   error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert into %s failed: %v", e.Table, e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }

// CommitError a checkpoint or final commit failed.
// Committed counts records made durable by earlier checkpoints.
type CommitError struct {
	Committed int
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed with %d records already committed: %v", e.Committed, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Safe reports whether the whole batch can be retried
func (e *CommitError) Safe() bool { return e.Committed == 0 }

// NotificationError the dataset service did not acknowledge a committed import
type NotificationError struct {
	CollectID string
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("unable to mark collect %s imported: %v", e.CollectID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
