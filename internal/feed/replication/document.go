package replication

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/syntrixbase/feedwatch/internal/feed"
)

// systemFields are added by the server when flattening a stored document.
var systemFields = map[string]bool{
	"version":    true,
	"updatedAt":  true,
	"createdAt":  true,
	"collection": true,
	"deleted":    true,
}

func toChange(collection string, doc map[string]interface{}) (feed.Change, error) {
	id, _ := doc["id"].(string)
	if id == "" {
		return feed.Change{}, fmt.Errorf("document without id")
	}
	updated, ok := millis(doc["updatedAt"])
	if !ok {
		return feed.Change{}, fmt.Errorf("document %s without updatedAt", id)
	}

	op := feed.OperationUpdate
	if deleted, _ := doc["deleted"].(bool); deleted {
		op = feed.OperationDelete
	} else if created, ok := millis(doc["createdAt"]); ok && created == updated {
		op = feed.OperationInsert
	}

	change := feed.Change{
		Collection: collection,
		Operation:  op,
		Key:        collection + "/" + id,
		Timestamp:  time.UnixMilli(updated).UTC(),
	}
	if op != feed.OperationDelete {
		data := make(map[string]interface{}, len(doc))
		for k, v := range doc {
			if !systemFields[k] {
				data[k] = v
			}
		}
		change.Data = data
	}
	return change, nil
}

func millis(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	case float64:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
