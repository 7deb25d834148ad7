package postgres

import (
	"time"

	"github.com/rbaliyan/moodlog/store"
)

const recordColumns = `id, owner_id, recorded_at, state, note, day`

// recordRow is the scan target for the records table.
type recordRow struct {
	ID         string    `db:"id"`
	OwnerID    string    `db:"owner_id"`
	RecordedAt time.Time `db:"recorded_at"`
	State      int16     `db:"state"`
	Note       string    `db:"note"`
	Day        time.Time `db:"day"`
}

func (r recordRow) record() store.Record {
	return store.Record{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Timestamp: r.RecordedAt,
		State:     store.MentalState(r.State),
		Note:      r.Note,
		Day:       r.Day,
	}
}

const bucketColumns = `day, distressed, anxious, neutral, happy`

// bucketRow is the scan target for the buckets table.
type bucketRow struct {
	Day        time.Time `db:"day"`
	Distressed int64     `db:"distressed"`
	Anxious    int64     `db:"anxious"`
	Neutral    int64     `db:"neutral"`
	Happy      int64     `db:"happy"`
}

func (r bucketRow) bucket() store.DailyBucket {
	return store.DailyBucket{
		Day:    r.Day,
		Counts: store.Counts{r.Distressed, r.Anxious, r.Neutral, r.Happy},
	}
}

func toBuckets(rows []bucketRow) []store.DailyBucket {
	out := make([]store.DailyBucket, len(rows))
	for i, r := range rows {
		out[i] = r.bucket()
	}
	return out
}

func toRecords(rows []recordRow) []store.Record {
	out := make([]store.Record, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out
}
