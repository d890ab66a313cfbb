package oplog

import (
	"fmt"

	"go.ytsaurus.tech/library/go/core/xerrors"
)

// Coarse error classes. Every error returned by this package matches exactly
// one of ErrOplogNotFound, ErrConnection or ErrDecode with xerrors.Is.
var (
	// ErrOplogNotFound is returned by Build when the connected server has no
	// local.oplog.rs collection, i.e. it is not a replica set member.
	ErrOplogNotFound = xerrors.NewSentinel("oplog: collection local.oplog.rs does not exist")

	// ErrConnection marks cursor or connection failures during a pull. The
	// iterator never reconnects on its own: rebuild it with ResumeAfter set to
	// LastTimestamp of the failed instance.
	ErrConnection = xerrors.NewSentinel("oplog: connection failure")

	// ErrDecode marks entries that could not be classified. The offending
	// entry is already consumed from the cursor: a consumer that logs the
	// error and keeps pulling will not see the entry again.
	ErrDecode = xerrors.NewSentinel("oplog: undecodable entry")

	// ErrMissingTimestamp and ErrMissingID report entries lacking the "ts"
	// resp. "h" field required on every oplog entry. Both match ErrDecode.
	ErrMissingTimestamp = xerrors.NewSentinel(`oplog: missing or invalid "ts" field`)
	ErrMissingID        = xerrors.NewSentinel(`oplog: missing or invalid "h" field`)
)

// MissingFieldError reports an entry lacking a field required for its
// operation kind, e.g. an insert without "o". Matchable with xerrors.As.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing or invalid %q field", e.Field)
}

// UnknownOperationError reports an entry whose "op" discriminator is not one
// of "n", "i", "u", "d", "c". Matchable with xerrors.As.
type UnknownOperationError struct {
	Op string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation type %q", e.Op)
}
