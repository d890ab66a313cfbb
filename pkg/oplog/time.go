package oplog

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

func ToTimestamp(t time.Time) primitive.Timestamp {
	return primitive.Timestamp{
		T: uint32(t.Unix()),
		I: 0,
	}
}

func FromTimestamp(ts primitive.Timestamp) time.Time {
	return time.Unix(int64(ts.T), 0)
}

// Interval returns the timestamps of the first and last entries currently
// retained in the oplog. A resume position older than `from` has already been
// truncated away and cannot be caught up from.
func Interval(ctx context.Context, client *mongo.Client) (from, to primitive.Timestamp, _ error) {
	type timestampHolder struct {
		Timestamp primitive.Timestamp `bson:"ts"`
	}
	var first, last timestampHolder

	coll := client.Database(DatabaseName).Collection(CollectionName)
	findFirst := options.FindOne().SetSort(bson.D{{Key: "$natural", Value: 1}})
	findLast := options.FindOne().SetSort(bson.D{{Key: "$natural", Value: -1}})

	if err := coll.FindOne(ctx, bson.D{}, findFirst).Decode(&first); err != nil {
		return from, to, ErrConnection.Wrap(xerrors.Errorf("error finding left oplog timestamp: %w", err))
	}
	if err := coll.FindOne(ctx, bson.D{}, findLast).Decode(&last); err != nil {
		return from, to, ErrConnection.Wrap(xerrors.Errorf("error finding right oplog timestamp: %w", err))
	}
	return first.Timestamp, last.Timestamp, nil
}
