package mongo

import (
	"time"

	"github.com/rbaliyan/moodlog/store"
)

// recordDoc is the BSON shape of a record.
type recordDoc struct {
	ID         string    `bson:"_id"`
	OwnerID    string    `bson:"owner_id"`
	RecordedAt time.Time `bson:"recorded_at"`
	State      int32     `bson:"state"`
	Note       string    `bson:"note"`
	Day        time.Time `bson:"day"`
}

func newRecordDoc(r store.Record) recordDoc {
	return recordDoc{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		RecordedAt: r.Timestamp,
		State:      int32(r.State),
		Note:       r.Note,
		Day:        r.Day,
	}
}

func (d recordDoc) record() store.Record {
	return store.Record{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Timestamp: d.RecordedAt,
		State:     store.MentalState(d.State),
		Note:      d.Note,
		Day:       d.Day,
	}
}

// countFields maps a state slot to its bucket field.
var countFields = [store.NumStates]string{"distressed", "anxious", "neutral", "happy"}

// bucketDoc is the BSON shape of a daily bucket.
type bucketDoc struct {
	OwnerID    string    `bson:"owner_id"`
	Day        time.Time `bson:"day"`
	Distressed int64     `bson:"distressed"`
	Anxious    int64     `bson:"anxious"`
	Neutral    int64     `bson:"neutral"`
	Happy      int64     `bson:"happy"`
}

func newBucketDoc(ownerID string, b store.DailyBucket) bucketDoc {
	return bucketDoc{
		OwnerID:    ownerID,
		Day:        b.Day,
		Distressed: b.Counts[0],
		Anxious:    b.Counts[1],
		Neutral:    b.Counts[2],
		Happy:      b.Counts[3],
	}
}

func (d bucketDoc) bucket() store.DailyBucket {
	return store.DailyBucket{
		Day:    d.Day,
		Counts: store.Counts{d.Distressed, d.Anxious, d.Neutral, d.Happy},
	}
}
