// Package payment is the monthly tuition ledger. The school API has no payments endpoint yet, so the
// ledger is kept in memory and seeded at start-up.
package payment

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
)

var (
	ErrNotFound      = errors.New("payment not found")
	ErrInvalidStatus = errors.New("invalid payment status")

	nowFunc = time.Now // mockable
)

type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
)

// ParseStatus accepts a status name; "" and "all" yield the empty status (no filter).
func ParseStatus(s string) (Status, error) {
	switch st := Status(core.CleanString(s, true /* lower */)); st {
	case "", "all":
		return "", nil
	case StatusPaid, StatusPending, StatusOverdue:
		return st, nil
	default:
		return "", errors.Wrap(ErrInvalidStatus, s)
	}
}

type Payment struct {
	ID       int        `json:"id"`
	Student  string     `json:"student"`
	Amount   int        `json:"amount"`
	DueDate  core.Date  `json:"dueDate"`
	Status   Status     `json:"status"`
	PaidDate *core.Date `json:"paidDate"`
}

type Summary struct {
	Total           int
	Paid            int
	Pending         int
	Overdue         int
	TotalAmount     int
	CollectedAmount int
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	payments map[int]*Payment
}

func NewLedger(payments ...Payment) *Ledger {
	l := &Ledger{payments: make(map[int]*Payment, len(payments))}
	for i := range payments {
		p := payments[i]
		l.payments[p.ID] = &p
	}
	return l
}

// List returns the payments with the given status (all when empty), ordered by ID.
func (l *Ledger) List(status Status) []Payment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	list := make([]Payment, 0, len(l.payments))
	for _, p := range l.payments {
		if status == "" || p.Status == status {
			list = append(list, *p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// SetStatus changes a payment's status. Paying sets the paid date to today; any other status clears it.
func (l *Ledger) SetStatus(id int, status Status) (Payment, error) {
	if status != StatusPaid && status != StatusPending && status != StatusOverdue {
		return Payment{}, errors.Wrap(ErrInvalidStatus, string(status))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	p.Status = status
	if status == StatusPaid {
		y, m, d := nowFunc().Date()
		today := core.NewDate(y, m, d)
		p.PaidDate = &today
	} else {
		p.PaidDate = nil
	}
	return *p, nil
}

func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var s Summary
	for _, p := range l.payments {
		s.Total++
		s.TotalAmount += p.Amount
		switch p.Status {
		case StatusPaid:
			s.Paid++
			s.CollectedAmount += p.Amount
		case StatusPending:
			s.Pending++
		case StatusOverdue:
			s.Overdue++
		}
	}
	return s
}

// Seed returns the demo ledger for the month containing `now`: seven students, half paid.
func Seed(now time.Time) []Payment {
	due := core.NewDate(now.Year(), now.Month(), 15)
	paidOn := func(day int) *core.Date {
		d := core.NewDate(now.Year(), now.Month(), day)
		return &d
	}
	return []Payment{
		{ID: 1, Student: "John Doe", Amount: 500, DueDate: due, Status: StatusPaid, PaidDate: paidOn(10)},
		{ID: 2, Student: "Jane Smith", Amount: 500, DueDate: due, Status: StatusPaid, PaidDate: paidOn(12)},
		{ID: 3, Student: "Robert Johnson", Amount: 500, DueDate: due, Status: StatusOverdue},
		{ID: 4, Student: "Emily Davis", Amount: 500, DueDate: due, Status: StatusPending},
		{ID: 5, Student: "Michael Brown", Amount: 500, DueDate: due, Status: StatusPaid, PaidDate: paidOn(8)},
		{ID: 6, Student: "Sarah Wilson", Amount: 500, DueDate: due, Status: StatusPending},
		{ID: 7, Student: "David Taylor", Amount: 500, DueDate: due, Status: StatusOverdue},
	}
}
