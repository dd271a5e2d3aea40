package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/feedwatch/internal/feed"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testFeed(t *testing.T) *ChangeFeed {
	t.Helper()
	f := &ChangeFeed{cfg: Config{Collections: []string{"orders"}}}
	f.cfg.applyDefaults()
	return f
}

func TestToChange_Operations(t *testing.T) {
	f := testFeed(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ms := ts.UnixMilli()

	tests := []struct {
		name string
		doc  bson.M
		op   feed.Operation
		data map[string]interface{}
	}{
		{
			name: "insert when created equals updated",
			doc:  bson.M{"_id": "a", "fullpath": "orders/a", "created_at": ms, "updated_at": ms, "data": bson.M{"total": 3}},
			op:   feed.OperationInsert,
			data: map[string]interface{}{"total": 3},
		},
		{
			name: "update",
			doc:  bson.M{"_id": "a", "created_at": ms - 10, "updated_at": ms, "status": "paid"},
			op:   feed.OperationUpdate,
			data: map[string]interface{}{"status": "paid"},
		},
		{
			name: "delete drops payload",
			doc:  bson.M{"_id": "a", "updated_at": ms, "deleted": true, "data": bson.M{"x": 1}},
			op:   feed.OperationDelete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := f.toChange("orders", tt.doc)
			require.NoError(t, err)
			assert.Equal(t, "orders", c.Collection)
			assert.Equal(t, tt.op, c.Operation)
			assert.Equal(t, tt.data, c.Data)
			assert.True(t, ts.Equal(c.Timestamp))
		})
	}
}

func TestToChange_MissingTimestamp(t *testing.T) {
	f := testFeed(t)
	_, err := f.toChange("orders", bson.M{"_id": "a"})
	assert.Error(t, err)
}

func TestDocumentKey(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, "orders/a", documentKey(bson.M{"_id": "x", "fullpath": "orders/a"}))
	assert.Equal(t, "x", documentKey(bson.M{"_id": "x"}))
	assert.Equal(t, oid.Hex(), documentKey(bson.M{"_id": oid}))
	assert.Equal(t, "42", documentKey(bson.M{"_id": int32(42)}))
	assert.Equal(t, "", documentKey(bson.M{}))
}

func TestMillisOf(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, v := range []interface{}{
		ts.UnixMilli(),
		float64(ts.UnixMilli()),
		primitive.NewDateTimeFromTime(ts),
		ts,
	} {
		ms, ok := millisOf(v)
		assert.True(t, ok, "%T", v)
		assert.Equal(t, ts.UnixMilli(), ms, "%T", v)
	}
	ms, ok := millisOf(int32(7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), ms)

	_, ok = millisOf("2024-03-01")
	assert.False(t, ok)
}

func TestPayload_NestedDocumentForms(t *testing.T) {
	got := payload(bson.M{"data": bson.D{{Key: "a", Value: 1}}}, "updated_at", "deleted")
	assert.Equal(t, map[string]interface{}{"a": 1}, got)

	got = payload(bson.M{"_id": "k", "collection": "orders", "version": 2, "updated_at": 1, "deleted": false, "name": "n"}, "updated_at", "deleted")
	assert.Equal(t, map[string]interface{}{"name": "n"}, got)
}

func TestSinceFilter_Document(t *testing.T) {
	f := testFeed(t)
	assert.Equal(t, bson.M{}, f.sinceFilter(time.Time{}))

	since := time.UnixMilli(1700000000000)
	assert.Equal(t, bson.M{"updated_at": bson.M{"$gt": int64(1700000000000)}}, f.sinceFilter(since))
}
