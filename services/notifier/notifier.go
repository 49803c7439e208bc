// Package notifier polls attendance and raises a one-shot toast whenever the latest PRESENT mark
// moves to a new date.
package notifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/attendance"
)

const DefaultInterval = 3 * time.Second

var ErrBusy = errors.New("a poll is already in flight")

// Fetcher returns the attendance snapshot of a window.
type Fetcher interface {
	Fetch(ctx context.Context, w attendance.Window) ([]attendance.Record, error)
}

// Toast is a one-shot, user-facing notice.
type Toast struct {
	ID        string    `json:"id"`
	StudentID core.ID   `json:"studentId"`
	Name      string    `json:"name"`
	Date      core.Date `json:"date"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Sink delivers toasts.
type Sink interface {
	Toast(ctx context.Context, t Toast) error
}

type Options struct {
	Interval time.Duration     // default DefaultInterval
	Window   attendance.Window // zero month/year: the current one at each poll
	Location *time.Location    // calendar used for "yesterday"; default time.Local
	Logger   core.Logger
	// Registerer receives the notifier metrics; nil keeps them unregistered.
	Registerer prometheus.Registerer
}

type Notifier struct {
	fetcher Fetcher
	sink    Sink
	opts    Options
	logger  core.Logger
	metrics *metrics
	nowFunc func() time.Time

	inFlight atomic.Bool

	mu       sync.Mutex
	polled   bool
	baseline Arrival // zero Date: nothing eligible at the last poll
}

func New(fetcher Fetcher, sink Sink, opts Options) *Notifier {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = core.NopLogger
	}
	return &Notifier{
		fetcher: fetcher,
		sink:    sink,
		opts:    opts,
		logger:  logger,
		metrics: newMetrics(opts.Registerer),
		nowFunc: time.Now,
	}
}

// Baseline returns the arrival seen by the last successful poll; ok is false before the first poll
// and when that poll found nothing eligible.
func (n *Notifier) Baseline() (a Arrival, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.baseline, n.polled && !n.baseline.Date.IsZero()
}

// Run polls immediately, then every interval, until ctx is done. A tick is skipped while the
// previous poll is still running.
func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.opts.Interval)
	defer ticker.Stop()

	n.logger.Info("notifier started", map[string]interface{}{"interval": n.opts.Interval.String()})
	defer n.logger.Info("notifier stopped")

	var wg sync.WaitGroup
	defer wg.Wait()
	tick := func() {
		if !n.inFlight.CompareAndSwap(false, true) {
			n.metrics.polls.WithLabelValues("skipped").Inc()
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer n.inFlight.Store(false)
			_ = n.poll(ctx)
		}()
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick()
		}
	}
}

// Poll runs one poll synchronously. It returns ErrBusy if another poll is in flight.
// Fetch errors are returned for information only: the baseline is left untouched and no toast is raised.
func (n *Notifier) Poll(ctx context.Context) error {
	if !n.inFlight.CompareAndSwap(false, true) {
		n.metrics.polls.WithLabelValues("skipped").Inc()
		return ErrBusy
	}
	defer n.inFlight.Store(false)
	return n.poll(ctx)
}

func (n *Notifier) poll(ctx context.Context) error {
	now := n.nowFunc().In(n.opts.Location)
	window := n.opts.Window.Resolve(now)

	records, err := n.fetcher.Fetch(ctx, window)
	if err != nil {
		n.metrics.polls.WithLabelValues("error").Inc()
		if ctx.Err() == nil {
			n.logger.Warn("notifier: fetching attendance", err)
		}
		return errors.Wrap(err, "polling attendance")
	}
	n.metrics.polls.WithLabelValues("ok").Inc()

	latest, found := LatestPresent(records, now)

	// only the very first observation is silent; an empty snapshot becomes a zero-dated baseline
	n.mu.Lock()
	prev, polled := n.baseline, n.polled
	n.baseline, n.polled = latest, true
	n.mu.Unlock()

	if !found || !polled || latest.Date.Equal(prev.Date.Time) {
		return nil
	}

	toast := Toast{
		ID:        uuid.NewString(),
		StudentID: latest.Student.ID,
		Name:      latest.Student.Name,
		Date:      latest.Date,
		Message:   latest.Student.Name + " - arrived.",
		At:        now,
	}
	n.metrics.toasts.Inc()
	if err := n.sink.Toast(ctx, toast); err != nil {
		n.logger.Warn("notifier: delivering toast", errors.Wrap(err, toast.Message))
	}
	return nil
}
