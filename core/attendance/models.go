package attendance

import (
	"sort"
	"time"

	"github.com/trezcool/masomo-admin/core"
)

type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
)

type StudentRef struct {
	ID   core.ID `json:"id"`
	Name string  `json:"name"`
}

type Item struct {
	Day    int        `json:"day"`
	Date   *core.Date `json:"date"`
	Status Status     `json:"status"`
}

// Record is one student's attendance over a month. Read-only.
type Record struct {
	Student StudentRef `json:"student"`
	Items   []Item     `json:"items"`
}

// Window is the month/year an attendance query covers.
type Window struct {
	Month time.Month
	Year  int
}

// WindowOf returns the window containing t.
func WindowOf(t time.Time) Window {
	return Window{Month: t.Month(), Year: t.Year()}
}

// Resolve fills zero month/year with the ones of `now`, and clamps an out of range month.
func (w Window) Resolve(now time.Time) Window {
	if w.Month < time.January || w.Month > time.December {
		w.Month = now.Month()
	}
	if w.Year <= 0 {
		w.Year = now.Year()
	}
	return w
}

func (w Window) Prev() Window {
	t := time.Date(w.Year, w.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return WindowOf(t)
}

func (w Window) Next() Window {
	t := time.Date(w.Year, w.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return WindowOf(t)
}

func (w Window) String() string {
	return time.Date(w.Year, w.Month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

// Days returns the number of days in the window's month.
func (w Window) Days() int {
	return time.Date(w.Year, w.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SchoolDays returns the days of the month that are not on a weekend.
func (w Window) SchoolDays() []int {
	days := make([]int, 0, 23)
	for d := 1; d <= w.Days(); d++ {
		switch time.Date(w.Year, w.Month, d, 0, 0, 0, 0, time.UTC).Weekday() {
		case time.Saturday, time.Sunday:
		default:
			days = append(days, d)
		}
	}
	return days
}

type (
	Row struct {
		Student StudentRef
		Cells   map[int]Status // by day of month
		Present int
		Absent  int
	}

	Stats struct {
		TotalDays         int
		TotalStudents     int
		PresentCount      int
		AbsentCount       int
		PresentPercentage float64
		AbsentPercentage  float64
	}

	// Grid is the monthly attendance table: one row per student, one column per school day.
	Grid struct {
		Window Window
		Days   []int
		Rows   []Row
		Stats  Stats
	}
)

// Status returns the status of the cell, ABSENT when nothing was recorded.
func (r Row) Status(day int) Status {
	if s, ok := r.Cells[day]; ok {
		return s
	}
	return StatusAbsent
}

// BuildGrid lays out records for the window. Rows are sorted by student name.
func BuildGrid(w Window, records []Record) Grid {
	g := Grid{Window: w, Days: w.SchoolDays()}
	school := make(map[int]bool, len(g.Days))
	for _, d := range g.Days {
		school[d] = true
	}

	for _, rec := range records {
		row := Row{Student: rec.Student, Cells: make(map[int]Status, len(rec.Items))}
		for _, it := range rec.Items {
			if !school[it.Day] {
				continue
			}
			row.Cells[it.Day] = it.Status
		}
		for _, d := range g.Days {
			if row.Status(d) == StatusPresent {
				row.Present++
			} else {
				row.Absent++
			}
		}
		g.Stats.PresentCount += row.Present
		g.Stats.AbsentCount += row.Absent
		g.Rows = append(g.Rows, row)
	}
	sort.SliceStable(g.Rows, func(i, j int) bool { return g.Rows[i].Student.Name < g.Rows[j].Student.Name })

	g.Stats.TotalDays = len(g.Days)
	g.Stats.TotalStudents = len(g.Rows)
	if total := g.Stats.TotalDays * g.Stats.TotalStudents; total > 0 {
		g.Stats.PresentPercentage = percent(g.Stats.PresentCount, total)
		g.Stats.AbsentPercentage = percent(g.Stats.AbsentCount, total)
	}
	return g
}

func percent(n, total int) float64 {
	return float64(int(float64(n)*1000/float64(total)+0.5)) / 10 // one decimal
}

// PresentOn counts the students marked PRESENT on the calendar day of `day`.
func PresentOn(records []Record, day core.Date) int {
	var n int
	target := day.Day()
	for _, rec := range records {
		for _, it := range rec.Items {
			if it.Status == StatusPresent && it.Date != nil && it.Date.Day().Equal(target.Time) {
				n++
				break
			}
		}
	}
	return n
}
