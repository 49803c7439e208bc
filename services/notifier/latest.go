package notifier

import (
	"time"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/attendance"
)

// Arrival is the most recent PRESENT mark found in a snapshot.
type Arrival struct {
	Student attendance.StudentRef
	Date    core.Date
}

// LatestPresent returns the PRESENT item with the latest date among all students, considering only
// items dated yesterday or earlier. Days are read in now's location.
// Equal dates are resolved in favour of the lowest student ID, so the result does not depend on the
// order of the records.
func LatestPresent(records []attendance.Record, now time.Time) (Arrival, bool) {
	yesterday := core.Yesterday(now)
	loc := now.Location()

	var (
		best  Arrival
		found bool
	)
	for _, rec := range records {
		for _, it := range rec.Items {
			if it.Status != attendance.StatusPresent || it.Date == nil || it.Date.IsZero() {
				continue
			}
			if it.Date.DayIn(loc).After(yesterday.Time) {
				continue
			}
			if !found || later(*it.Date, rec.Student.ID, best) {
				best = Arrival{Student: rec.Student, Date: *it.Date}
				found = true
			}
		}
	}
	return best, found
}

func later(date core.Date, id core.ID, than Arrival) bool {
	switch {
	case date.After(than.Date.Time):
		return true
	case date.Equal(than.Date.Time):
		return id.Less(than.Student.ID)
	default:
		return false
	}
}
