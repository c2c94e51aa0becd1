package task

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/frahmantamala/task-dashboard/internal/core/events"
)

// SnapshotFunc receives the complete current task set of a division.
type SnapshotFunc func(tasks []*Task)

type Subscriber interface {
	Subscribe(eventType string, handler events.Handler) func()
}

type Lister interface {
	ListByDivision(ctx context.Context, division string) ([]*Task, error)
}

// Feed is the division-scoped live query over the task store. Every change
// in scope redelivers the full snapshot.
type Feed struct {
	tasks  Lister
	bus    Subscriber
	logger *slog.Logger
}

func NewFeed(tasks Lister, bus Subscriber, logger *slog.Logger) *Feed {
	return &Feed{
		tasks:  tasks,
		bus:    bus,
		logger: logger,
	}
}

type feedSubscription struct {
	division string
	callback SnapshotFunc
	mu       sync.Mutex
	closed   bool
	unsubs   []func()
}

func (fs *feedSubscription) close() {
	fs.mu.Lock()
	fs.closed = true
	unsubs := fs.unsubs
	fs.unsubs = nil
	fs.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// SubscribeByDivision delivers the initial snapshot before returning, then a
// fresh snapshot after every create, update or delete in the division.
// Deliveries to one subscriber never overlap. The subscription ends when the
// returned func is called or ctx is done; the callback must not call it.
func (f *Feed) SubscribeByDivision(ctx context.Context, division string, callback SnapshotFunc) (func(), error) {
	sub := &feedSubscription{division: strings.TrimSpace(division), callback: callback}

	// Hold the delivery lock until the initial snapshot is out so an early
	// change is delivered after it, not before.
	sub.mu.Lock()
	for _, eventType := range events.TaskEventTypes {
		sub.unsubs = append(sub.unsubs, f.bus.Subscribe(eventType, f.handler(sub)))
	}

	initial, err := f.tasks.ListByDivision(ctx, sub.division)
	if err != nil {
		sub.mu.Unlock()
		sub.close()
		return nil, err
	}
	callback(initial)
	sub.mu.Unlock()

	stop := context.AfterFunc(ctx, sub.close)
	return func() {
		stop()
		sub.close()
	}, nil
}

func (f *Feed) handler(sub *feedSubscription) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		changed, ok := event.(*events.TaskChangedEvent)
		if !ok || !strings.EqualFold(changed.Division, sub.division) {
			return nil
		}
		return f.deliver(ctx, sub)
	}
}

func (f *Feed) deliver(ctx context.Context, sub *feedSubscription) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return nil
	}

	tasks, err := f.tasks.ListByDivision(ctx, sub.division)
	if err != nil {
		f.logger.WarnContext(ctx, "feed snapshot failed", "division", sub.division, "error", err)
		return err
	}
	sub.callback(tasks)
	return nil
}
