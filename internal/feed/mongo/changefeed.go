// Package mongo implements the change-feed and availability collaborators on
// top of MongoDB collections whose documents carry an updated_at timestamp
// in unix milliseconds.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/feedwatch/internal/feed"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config configures the MongoDB change feed.
type Config struct {
	Collections    []string
	UpdatedAtField string
	DeletedField   string
	// BatchSize limits the documents read per collection and fetch. 0 means
	// no limit.
	BatchSize int
}

func (c *Config) applyDefaults() {
	if c.UpdatedAtField == "" {
		c.UpdatedAtField = "updated_at"
	}
	if c.DeletedField == "" {
		c.DeletedField = "deleted"
	}
}

// ChangeFeed answers GetChangesSince by querying every tracked collection.
type ChangeFeed struct {
	db     *mongo.Database
	cfg    Config
	logger *slog.Logger

	boundary feed.Boundary
}

var _ feed.ChangeFeedService = (*ChangeFeed)(nil)
var _ feed.AvailabilityService = (*ChangeFeed)(nil)

// New creates a change feed over db.
func New(db *mongo.Database, cfg Config, logger *slog.Logger) (*ChangeFeed, error) {
	if db == nil {
		return nil, errors.New("mongo feed: database is required")
	}
	if len(cfg.Collections) == 0 {
		return nil, errors.New("mongo feed: at least one collection is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &ChangeFeed{
		db:     db,
		cfg:    cfg,
		logger: logger.With("component", "mongo-feed"),
	}, nil
}

// Connect opens a client and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// GetChangesSince returns the documents updated at or after since that were
// not delivered before, or nil when nothing changed. A collection that fills
// its batch caps the set at that batch's last timestamp.
func (f *ChangeFeed) GetChangesSince(ctx context.Context, since time.Time) (*feed.ChangeSet, error) {
	batches := make([]feed.Batch, 0, len(f.cfg.Collections))
	for _, name := range f.cfg.Collections {
		b, err := f.fetchCollection(ctx, name, since)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}

	cs := feed.Assemble(batches...)
	f.boundary.Record(since, cs)
	return cs, nil
}

func (f *ChangeFeed) fetchCollection(ctx context.Context, name string, since time.Time) (feed.Batch, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: f.cfg.UpdatedAtField, Value: 1},
		{Key: "_id", Value: 1},
	})
	limit := f.cfg.BatchSize
	if limit > 0 {
		limit += f.boundary.Delivered(name, since)
		opts.SetLimit(int64(limit))
	}

	cursor, err := f.db.Collection(name).Find(ctx, f.sinceFilter(since), opts)
	if err != nil {
		return feed.Batch{}, fmt.Errorf("query %s: %w", name, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return feed.Batch{}, fmt.Errorf("read %s: %w", name, err)
	}

	changes := make([]feed.Change, 0, len(docs))
	for _, doc := range docs {
		change, err := f.toChange(name, doc)
		if err != nil {
			f.logger.Warn("Skipping document without timestamp", "collection", name, "error", err)
			continue
		}
		changes = append(changes, change)
	}

	return feed.Batch{
		Changes:   f.boundary.Filter(since, changes),
		Truncated: limit > 0 && len(docs) >= limit,
	}, nil
}

func (f *ChangeFeed) sinceFilter(since time.Time) bson.M {
	if since.IsZero() {
		return bson.M{}
	}
	return bson.M{f.cfg.UpdatedAtField: bson.M{"$gte": since.UnixMilli()}}
}

// HasTrackableCollections reports whether at least one configured
// collection exists in the database.
func (f *ChangeFeed) HasTrackableCollections(ctx context.Context) (bool, error) {
	names, err := f.db.ListCollectionNames(ctx, bson.M{"name": bson.M{"$in": f.cfg.Collections}})
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}
	return len(names) > 0, nil
}
