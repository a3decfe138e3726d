package reporter

import (
	"math"
	"sort"

	"github.com/teamclock/teamclock/internal/models"
)

// bucket accumulates closed entries sharing a key. Entries without an
// activity level do not count toward the activity average.
type bucket struct {
	key         string
	seconds     int64
	entries     int
	activitySum float64
	activityN   int
	members     map[string]struct{}
}

func (b *bucket) add(e *models.TimeEntry, member string) {
	b.seconds += seconds64(e)
	b.entries++
	if e.ActivityLevel != nil {
		b.activitySum += *e.ActivityLevel
		b.activityN++
	}
	if member != "" {
		if b.members == nil {
			b.members = map[string]struct{}{}
		}
		b.members[member] = struct{}{}
	}
}

func (b *bucket) avgActivity() float64 {
	if b.activityN == 0 {
		return 0
	}
	return b.activitySum / float64(b.activityN)
}

// group buckets entries by their start time formatted in the report zone,
// returning only non-empty buckets in key order.
func (r *Reporter) group(entries []*models.TimeEntry, format string, member func(*models.TimeEntry) string) []*bucket {
	byKey := map[string]*bucket{}
	for _, e := range entries {
		k := e.StartTime.In(r.loc).Format(format)
		b, ok := byKey[k]
		if !ok {
			b = &bucket{key: k}
			byKey[k] = b
		}
		m := ""
		if member != nil {
			m = member(e)
		}
		b.add(e, m)
	}

	out := make([]*bucket, 0, len(byKey))
	for _, b := range byKey {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func seconds64(e *models.TimeEntry) int64 {
	if e.Duration == nil {
		return 0
	}
	return *e.Duration
}

func hours(seconds int64) float64 {
	return float64(seconds) / 3600
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
