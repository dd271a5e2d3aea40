package mongo

import (
	"fmt"
	"time"

	"github.com/syntrixbase/feedwatch/internal/feed"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// metaFields are stripped from the change payload when a document has no
// nested data field.
var metaFields = map[string]bool{
	"_id":        true,
	"fullpath":   true,
	"collection": true,
	"created_at": true,
	"version":    true,
}

// toChange converts a stored document into a feed change. Documents without
// a readable updated timestamp are rejected.
func (f *ChangeFeed) toChange(collection string, doc bson.M) (feed.Change, error) {
	updated, ok := millisOf(doc[f.cfg.UpdatedAtField])
	if !ok {
		return feed.Change{}, fmt.Errorf("document %v in %s has no %s", doc["_id"], collection, f.cfg.UpdatedAtField)
	}

	op := feed.OperationUpdate
	switch {
	case isTrue(doc[f.cfg.DeletedField]):
		op = feed.OperationDelete
	default:
		if created, ok := millisOf(doc["created_at"]); ok && created == updated {
			op = feed.OperationInsert
		}
	}

	change := feed.Change{
		Collection: collection,
		Operation:  op,
		Key:        documentKey(doc),
		Timestamp:  time.UnixMilli(updated).UTC(),
	}
	if op != feed.OperationDelete {
		change.Data = payload(doc, f.cfg.UpdatedAtField, f.cfg.DeletedField)
	}
	return change, nil
}

func documentKey(doc bson.M) string {
	if p, ok := doc["fullpath"].(string); ok && p != "" {
		return p
	}
	switch id := doc["_id"].(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

func payload(doc bson.M, updatedField, deletedField string) map[string]interface{} {
	if data, ok := asMap(doc["data"]); ok {
		return data
	}
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if metaFields[k] || k == updatedField || k == deletedField {
			continue
		}
		out[k] = v
	}
	return out
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case bson.M:
		return map[string]interface{}(m), true
	case map[string]interface{}:
		return m, true
	case bson.D:
		out := make(map[string]interface{}, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	default:
		return nil, false
	}
}

// millisOf reads a unix-millisecond timestamp stored as any numeric BSON type
// or as a BSON datetime.
func millisOf(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case primitive.DateTime:
		return int64(t), true
	case time.Time:
		return t.UnixMilli(), true
	default:
		return 0, false
	}
}

func isTrue(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}
