package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomo-admin/core"
)

// Subscriber hands out toast streams. cancel must be called when the stream is no longer read.
type Subscriber interface {
	Subscribe() (toasts <-chan Toast, cancel func())
}

// Broadcaster fans toasts out to in-process subscribers. Slow subscribers miss toasts rather than
// blocking the notifier.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]chan Toast
	buffer int
}

var (
	_ Sink       = (*Broadcaster)(nil)
	_ Subscriber = (*Broadcaster)(nil)
)

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 8
	}
	return &Broadcaster{subs: make(map[string]chan Toast), buffer: buffer}
}

func (b *Broadcaster) Toast(_ context.Context, t Toast) error {
	b.publish(t)
	return nil
}

func (b *Broadcaster) publish(t Toast) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

func (b *Broadcaster) Subscribe() (<-chan Toast, func()) {
	id := uuid.NewString()
	ch := make(chan Toast, b.buffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// claimTTL bounds how long an announced arrival is remembered across instances.
const claimTTL = 48 * time.Hour

// RedisBroadcaster publishes toasts on a Redis channel and relays that channel to local subscribers,
// so that every instance behind a load balancer shows every toast.
// Every instance runs its own notifier: an arrival is published by the first instance to claim it.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	local   *Broadcaster
	logger  core.Logger
}

var (
	_ Sink       = (*RedisBroadcaster)(nil)
	_ Subscriber = (*RedisBroadcaster)(nil)
)

func NewRedisBroadcaster(client *redis.Client, channel string, local *Broadcaster, logger core.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = core.NopLogger
	}
	return &RedisBroadcaster{client: client, channel: channel, local: local, logger: logger}
}

func (b *RedisBroadcaster) Toast(ctx context.Context, t Toast) error {
	claimed, err := b.claim(ctx, "toast", t)
	if err != nil || !claimed {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "encoding toast")
	}
	return errors.Wrap(b.client.Publish(ctx, b.channel, data).Err(), "publishing toast")
}

func (b *RedisBroadcaster) claimKey(scope string, t Toast) string {
	return b.channel + ":" + scope + ":" + string(t.StudentID) + ":" + t.Date.String()
}

// claim reports whether this instance is the first to deliver t within scope.
func (b *RedisBroadcaster) claim(ctx context.Context, scope string, t Toast) (bool, error) {
	ok, err := b.client.SetNX(ctx, b.claimKey(scope, t), t.ID, claimTTL).Result()
	if err != nil {
		return false, errors.Wrap(err, "claiming toast")
	}
	return ok, nil
}

// Exclusive wraps s so that, across all instances sharing the channel, each arrival reaches s once.
func (b *RedisBroadcaster) Exclusive(scope string, s Sink) Sink {
	return &exclusiveSink{b: b, scope: scope, next: s}
}

type exclusiveSink struct {
	b     *RedisBroadcaster
	scope string
	next  Sink
}

func (s *exclusiveSink) Toast(ctx context.Context, t Toast) error {
	claimed, err := s.b.claim(ctx, s.scope, t)
	if err != nil || !claimed {
		return err
	}
	return s.next.Toast(ctx, t)
}

func (b *RedisBroadcaster) Subscribe() (<-chan Toast, func()) {
	return b.local.Subscribe()
}

// Relay forwards the channel's messages to local subscribers until ctx is done.
func (b *RedisBroadcaster) Relay(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrap(err, "subscribing to "+b.channel)
	}

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

// forward hands a relayed payload to local subscribers; undecodable payloads are dropped.
func (b *RedisBroadcaster) forward(payload string) {
	var t Toast
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		b.logger.Warn("decoding relayed toast", err)
		return
	}
	b.local.publish(t)
}

// WriterSink prints toasts, one per line. Used by the CLI.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Sink = (*WriterSink)(nil)

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Toast(_ context.Context, t Toast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "[%s] %s (%s)\n", t.At.Format("15:04:05"), t.Message, t.Date)
	return err
}

// Sinks delivers every toast to each sink in turn. All sinks are tried; the first error is returned.
type Sinks []Sink

var _ Sink = Sinks(nil)

func (ss Sinks) Toast(ctx context.Context, t Toast) error {
	var first error
	for _, s := range ss {
		if err := s.Toast(ctx, t); err != nil && first == nil {
			first = err
		}
	}
	return first
}
