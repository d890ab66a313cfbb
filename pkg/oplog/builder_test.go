package oplog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuilderDefaults(t *testing.T) {
	b := NewBuilder(nil)
	require.True(t, b.noCursorTimeout)
	require.Nil(t, b.filter)
	require.Nil(t, b.resumeAfter)
}

func TestBuilderHasValueSemantics(t *testing.T) {
	base := NewBuilder(nil)
	filtered := base.WithFilter(OpFilter("i"))
	resumed := filtered.ResumeAfter(primitive.Timestamp{T: 1000, I: 1})

	// chained calls never mutate the builder they were called on
	require.Nil(t, base.filter)
	require.Nil(t, base.resumeAfter)
	require.NotNil(t, filtered.filter)
	require.Nil(t, filtered.resumeAfter)
	require.NotNil(t, resumed.resumeAfter)
}

func TestBuilderQueryCombinesFilterAndResumePosition(t *testing.T) {
	b := NewBuilder(nil).
		WithFilter(OpFilter("i")).
		ResumeAfter(primitive.Timestamp{T: 1000, I: 1})

	require.Equal(t, bson.D{
		{Key: "op", Value: bson.D{{Key: "$in", Value: []string{"i"}}}},
		{Key: "ts", Value: bson.D{{Key: "$gt", Value: primitive.Timestamp{T: 1000, I: 1}}}},
	}, b.query())
}

func TestBuilderQueryWithoutOptions(t *testing.T) {
	require.Equal(t, bson.D{}, NewBuilder(nil).query())
}

func TestBuilderQueryResumeOnly(t *testing.T) {
	b := NewBuilder(nil).ResumeAfter(primitive.Timestamp{T: 7, I: 0})
	require.Equal(t, bson.D{
		{Key: "ts", Value: bson.D{{Key: "$gt", Value: primitive.Timestamp{T: 7, I: 0}}}},
	}, b.query())
}

func TestBuildRequiresClient(t *testing.T) {
	_, err := NewBuilder(nil).Build(context.Background())
	require.Error(t, err)
}
