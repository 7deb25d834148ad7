package mongo

import (
	"context"
	"fmt"

	"github.com/rbaliyan/moodlog/store"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// JournalStats returns aggregate statistics for a user's journal.
// Bucket totals come from one aggregation; the record count from one count.
func (s *Store) JournalStats(ctx context.Context, ownerID string) (*store.JournalStats, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	pipeline := bson.A{
		bson.D{bson.E{Key: "$match", Value: bson.D{bson.E{Key: "owner_id", Value: ownerID}}}},
		bson.D{bson.E{Key: "$group", Value: bson.D{
			bson.E{Key: "_id", Value: nil},
			bson.E{Key: "days", Value: bson.D{bson.E{Key: "$sum", Value: 1}}},
			bson.E{Key: "distressed", Value: bson.D{bson.E{Key: "$sum", Value: "$distressed"}}},
			bson.E{Key: "anxious", Value: bson.D{bson.E{Key: "$sum", Value: "$anxious"}}},
			bson.E{Key: "neutral", Value: bson.D{bson.E{Key: "$sum", Value: "$neutral"}}},
			bson.E{Key: "happy", Value: bson.D{bson.E{Key: "$sum", Value: "$happy"}}},
		}}},
	}

	cursor, err := s.buckets.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate buckets: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Days       int64 `bson:"days"`
		Distressed int64 `bson:"distressed"`
		Anxious    int64 `bson:"anxious"`
		Neutral    int64 `bson:"neutral"`
		Happy      int64 `bson:"happy"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}

	stats := &store.JournalStats{}
	if len(results) > 0 {
		r := results[0]
		stats.DayCount = r.Days
		stats.StateTotals = store.Counts{r.Distressed, r.Anxious, r.Neutral, r.Happy}
	}

	total, err := s.collection.CountDocuments(ctx, bson.D{bson.E{Key: "owner_id", Value: ownerID}})
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	stats.TotalRecords = total
	return stats, nil
}
