package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/feedwatch/internal/feed"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ms(offset time.Duration) int64 {
	return base.Add(offset).UnixMilli()
}

func doc(id string, updated int64) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "created_at", Value: ms(-time.Hour)},
		{Key: "updated_at", Value: updated},
		{Key: "data", Value: bson.D{{Key: "id", Value: id}}},
	}
}

func cursor(ns string, docs ...bson.D) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, docs...)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Config{Collections: []string{"orders"}}, nil)
	assert.Error(t, err)

	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	mt.Run("no collections", func(mt *mtest.T) {
		_, err := New(mt.DB, Config{}, nil)
		assert.Error(mt, err)
	})
}

func TestGetChangesSince(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("merges collections and reports latest timestamp", func(mt *mtest.T) {
		f, err := New(mt.DB, Config{Collections: []string{"orders", "users"}}, nil)
		require.NoError(mt, err)

		mt.AddMockResponses(
			cursor("db.orders", doc("o1", ms(time.Second)), doc("o2", ms(3*time.Second))),
			cursor("db.users", doc("u1", ms(2*time.Second))),
		)

		cs, err := f.GetChangesSince(context.Background(), base)
		require.NoError(mt, err)
		require.NotNil(mt, cs)
		require.Len(mt, cs.Changes, 3)
		assert.Equal(mt, "o1", cs.Changes[0].Key)
		assert.Equal(mt, "users", cs.Changes[2].Collection)
		require.NotNil(mt, cs.SourceDateTime)
		assert.True(mt, base.Add(3*time.Second).Equal(*cs.SourceDateTime))
		assert.Equal(mt, feed.OperationUpdate, cs.Changes[0].Operation)
	})

	mt.Run("no documents is no changes", func(mt *mtest.T) {
		f, err := New(mt.DB, Config{Collections: []string{"orders"}}, nil)
		require.NoError(mt, err)

		mt.AddMockResponses(cursor("db.orders"))

		cs, err := f.GetChangesSince(context.Background(), base)
		require.NoError(mt, err)
		assert.Nil(mt, cs)
	})

	mt.Run("full batch cuts the set at its last timestamp", func(mt *mtest.T) {
		f, err := New(mt.DB, Config{Collections: []string{"orders", "users"}, BatchSize: 2}, nil)
		require.NoError(mt, err)

		mt.AddMockResponses(
			cursor("db.orders", doc("o1", ms(time.Second)), doc("o2", ms(2*time.Second))),
			cursor("db.users", doc("u1", ms(time.Second)), doc("u2", ms(5*time.Second))),
		)

		cs, err := f.GetChangesSince(context.Background(), base)
		require.NoError(mt, err)
		require.NotNil(mt, cs)

		keys := make([]string, 0, len(cs.Changes))
		for _, c := range cs.Changes {
			keys = append(keys, c.Key)
		}
		assert.Equal(mt, []string{"o1", "o2", "u1"}, keys)
		assert.True(mt, base.Add(2*time.Second).Equal(*cs.SourceDateTime))
	})

	mt.Run("documents tied across a page are delivered once", func(mt *mtest.T) {
		f, err := New(mt.DB, Config{Collections: []string{"orders"}, BatchSize: 2}, nil)
		require.NoError(mt, err)

		tied := ms(time.Second)
		mt.AddMockResponses(cursor("db.orders", doc("a", tied), doc("b", tied)))
		cs, err := f.GetChangesSince(context.Background(), base)
		require.NoError(mt, err)
		require.NotNil(mt, cs)
		require.Len(mt, cs.Changes, 2)
		since := *cs.SourceDateTime
		assert.Equal(mt, 2, f.boundary.Delivered("orders", since))

		// The widened page holds the delivered pair and the remainder.
		mt.AddMockResponses(cursor("db.orders", doc("a", tied), doc("b", tied), doc("c", tied)))
		cs, err = f.GetChangesSince(context.Background(), since)
		require.NoError(mt, err)
		require.NotNil(mt, cs)
		require.Len(mt, cs.Changes, 1)
		assert.Equal(mt, "c", cs.Changes[0].Key)
		assert.True(mt, since.Equal(*cs.SourceDateTime))

		mt.AddMockResponses(cursor("db.orders", doc("a", tied), doc("b", tied), doc("c", tied)))
		cs, err = f.GetChangesSince(context.Background(), since)
		require.NoError(mt, err)
		assert.Nil(mt, cs)
	})

	mt.Run("documents without timestamp are skipped", func(mt *mtest.T) {
		f, err := New(mt.DB, Config{Collections: []string{"orders"}}, nil)
		require.NoError(mt, err)

		mt.AddMockResponses(cursor("db.orders",
			bson.D{{Key: "_id", Value: "bad"}},
			doc("o1", ms(time.Second)),
		))

		cs, err := f.GetChangesSince(context.Background(), base)
		require.NoError(mt, err)
		require.Len(mt, cs.Changes, 1)
		assert.Equal(mt, "o1", cs.Changes[0].Key)
	})

	mt.Run("query error", func(mt *mtest.T) {
		f, err := New(mt.DB, Config{Collections: []string{"orders"}}, nil)
		require.NoError(mt, err)

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Message: "interrupted",
		}))

		cs, err := f.GetChangesSince(context.Background(), base)
		assert.Error(mt, err)
		assert.Nil(mt, cs)
	})
}

func TestSinceFilter(t *testing.T) {
	f := &ChangeFeed{cfg: Config{UpdatedAtField: "updated_at"}}
	assert.Equal(t, bson.M{}, f.sinceFilter(time.Time{}))
	assert.Equal(t, bson.M{"updated_at": bson.M{"$gte": base.UnixMilli()}}, f.sinceFilter(base))
}

func TestHasTrackableCollections(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("collection exists", func(mt *mtest.T) {
		f, err := New(mt.DB, Config{Collections: []string{"orders"}}, nil)
		require.NoError(mt, err)

		mt.AddMockResponses(cursor("db.$cmd.listCollections",
			bson.D{{Key: "name", Value: "orders"}, {Key: "type", Value: "collection"}}))

		ok, err := f.HasTrackableCollections(context.Background())
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("none exist", func(mt *mtest.T) {
		f, err := New(mt.DB, Config{Collections: []string{"orders"}}, nil)
		require.NoError(mt, err)

		mt.AddMockResponses(cursor("db.$cmd.listCollections"))

		ok, err := f.HasTrackableCollections(context.Background())
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("error", func(mt *mtest.T) {
		f, err := New(mt.DB, Config{Collections: []string{"orders"}}, nil)
		require.NoError(mt, err)

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Message: "unauthorized"}))

		ok, err := f.HasTrackableCollections(context.Background())
		assert.Error(mt, err)
		assert.False(mt, ok)
	})
}
