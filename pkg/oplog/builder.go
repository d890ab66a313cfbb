package oplog

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/log/nop"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

const (
	// DatabaseName and CollectionName locate the oplog on a replica set member.
	DatabaseName   = "local"
	CollectionName = "oplog.rs"

	// maxAwaitTime bounds how long one server-side poll of the tailable cursor
	// waits for new entries before TryNext reports "nothing yet".
	maxAwaitTime = 5 * time.Second
)

// Builder assembles the configuration of a tailing session. Builders have
// value semantics: every chained call returns an updated copy, so a Builder
// may be stored and reused as a template.
//
//	tail, err := oplog.NewBuilder(client).
//		WithFilter(oplog.OpFilter("i")).
//		ResumeAfter(ts).
//		Build(ctx)
type Builder struct {
	client          *mongo.Client
	logger          log.Logger
	filter          bson.D
	resumeAfter     *primitive.Timestamp
	noCursorTimeout bool
}

// NewBuilder returns a Builder for the given client with the default options:
// no filter, no resume position, cursor inactivity timeout disabled.
func NewBuilder(client *mongo.Client) Builder {
	return Builder{
		client:          client,
		logger:          &nop.Logger{},
		filter:          nil,
		resumeAfter:     nil,
		noCursorTimeout: true,
	}
}

// New opens a tailing session over the whole oplog with the default options.
func New(ctx context.Context, client *mongo.Client) (*Oplog, error) {
	return NewBuilder(client).Build(ctx)
}

// WithFilter restricts the session to entries matching the given pattern. The
// pattern is handed to the server verbatim and never re-evaluated in-process.
func (b Builder) WithFilter(filter bson.D) Builder {
	b.filter = filter
	return b
}

// WithLogger sets the logger used by the session.
func (b Builder) WithLogger(logger log.Logger) Builder {
	b.logger = logger
	return b
}

// ResumeAfter makes the session start strictly after the given timestamp,
// typically LastTimestamp of a previously failed session.
func (b Builder) ResumeAfter(ts primitive.Timestamp) Builder {
	b.resumeAfter = &ts
	return b
}

// NoCursorTimeout controls whether the server may reap the cursor after ten
// minutes of inactivity. Enabled by default; disable on deployments that
// forbid immortal cursors (e.g. some hosted tiers).
func (b Builder) NoCursorTimeout(enabled bool) Builder {
	b.noCursorTimeout = enabled
	return b
}

// Build verifies that the connected server carries an oplog and opens a
// tailable await cursor over it positioned per the assembled configuration.
func (b Builder) Build(ctx context.Context) (*Oplog, error) {
	if b.client == nil {
		return nil, xerrors.New("oplog: mongo client is not set")
	}

	database := b.client.Database(DatabaseName)
	names, err := database.ListCollectionNames(ctx, bson.D{{Key: "name", Value: CollectionName}})
	if err != nil {
		return nil, ErrConnection.Wrap(xerrors.Errorf("cannot list collections of %q: %w", DatabaseName, err))
	}
	if len(names) == 0 {
		return nil, ErrOplogNotFound
	}

	findOptions := options.Find().
		SetCursorType(options.TailableAwait).
		SetNoCursorTimeout(b.noCursorTimeout).
		SetMaxAwaitTime(maxAwaitTime)

	query := b.query()
	cursor, err := database.Collection(CollectionName).Find(ctx, query, findOptions)
	if err != nil {
		return nil, ErrConnection.Wrap(xerrors.Errorf("cannot open tailable cursor over %s.%s: %w", DatabaseName, CollectionName, err))
	}

	b.logger.Info("oplog tailing session opened",
		log.Any("query", query),
		log.Bool("noCursorTimeout", b.noCursorTimeout))
	return newOplog(mongoCursor{cursor: cursor}, b.logger), nil
}

// query combines the user filter with the resume position clause.
func (b Builder) query() bson.D {
	query := make(bson.D, 0, len(b.filter)+1)
	query = append(query, b.filter...)
	if b.resumeAfter != nil {
		query = append(query, bson.E{Key: "ts", Value: bson.D{{Key: "$gt", Value: *b.resumeAfter}}})
	}
	return query
}
