package oplog

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// rawCursor is the slice of *mongo.Cursor the tailer relies on. TryNext
// returns the next raw document when one is available, (nil, false, nil) when
// the tailable cursor is currently exhausted, or a terminal error.
type rawCursor interface {
	TryNext(ctx context.Context) (bson.Raw, bool, error)
	Close(ctx context.Context) error
}

type mongoCursor struct {
	cursor *mongo.Cursor
}

func (c mongoCursor) TryNext(ctx context.Context) (bson.Raw, bool, error) {
	if c.cursor.TryNext(ctx) {
		return c.cursor.Current, true, nil
	}
	if err := c.cursor.Err(); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

func (c mongoCursor) Close(ctx context.Context) error {
	return c.cursor.Close(ctx)
}

// Oplog is an infinite iterator over the replica set oplog. It yields
// operations in the order the server wrote them, expanding applyOps batches
// in place. It is owned by a single consumer; concurrent Next calls are not
// supported.
//
// Oplog never reconnects by itself. When Next returns an error matching
// ErrConnection, build a fresh instance with ResumeAfter(LastTimestamp()).
type Oplog struct {
	logger  log.Logger
	cursor  rawCursor
	pending []Operation
	lastTS  primitive.Timestamp
}

func newOplog(cursor rawCursor, logger log.Logger) *Oplog {
	return &Oplog{
		logger:  logger,
		cursor:  cursor,
		pending: nil,
		lastTS:  primitive.Timestamp{},
	}
}

// Next blocks until the next operation is available and returns it.
//
// An exhausted cursor is not a termination condition: the oplog is conceptually
// infinite, so Next keeps polling until new entries are appended, the context
// ends or the connection fails. Errors matching ErrDecode are local to one
// entry; the entry is already skipped and subsequent Next calls continue with
// the following one.
func (o *Oplog) Next(ctx context.Context) (Operation, error) {
	if len(o.pending) > 0 {
		next := o.pending[0]
		o.pending = o.pending[1:]
		return next, nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, xerrors.Errorf("context ended: %w", ctx.Err())
		default:
		}

		raw, ok, err := o.cursor.TryNext(ctx)
		if err != nil {
			return nil, ErrConnection.Wrap(xerrors.Errorf("cursor failure: %w", err))
		}
		if !ok {
			// tailable cursor is drained for now, poll again
			continue
		}

		operations, err := Decode(raw)
		if err != nil {
			o.logger.Warn("skipping undecodable oplog entry", log.Error(err))
			return nil, err
		}
		o.lastTS = entryTimestamp(raw)

		if len(operations) == 0 {
			// empty applyOps batch, move on to the next entry
			continue
		}
		o.pending = operations[1:]
		return operations[0], nil
	}
}

// LastTimestamp returns the "ts" of the last successfully decoded oplog entry,
// the position to resume from after a connection failure. Zero until the first
// entry has been decoded.
func (o *Oplog) LastTimestamp() primitive.Timestamp {
	return o.lastTS
}

// Close releases the underlying cursor. The shared client connection is owned
// by the caller and stays open.
func (o *Oplog) Close(ctx context.Context) error {
	if err := o.cursor.Close(ctx); err != nil {
		return ErrConnection.Wrap(xerrors.Errorf("cannot close cursor: %w", err))
	}
	return nil
}

// entryTimestamp is only called on entries Decode accepted, where "ts" is
// guaranteed present.
func entryTimestamp(raw bson.Raw) primitive.Timestamp {
	t, i, _ := raw.Lookup("ts").TimestampOK()
	return primitive.Timestamp{T: t, I: i}
}
