package runs

import (
	"log/slog"
	"sync"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
)

// Event is one progress update pushed to subscribers. Status carries a
// stage status for progress events, the run status for the snapshot
// event, and the terminal marker for the final event.
type Event struct {
	Stage     string                        `json:"stage"`
	Status    string                        `json:"status"`
	Progress  map[string]domain.StageStatus `json:"progress"`
	Error     string                        `json:"error,omitempty"`
	Result    *domain.PipelineResult        `json:"result,omitempty"`
	NotionURL string                        `json:"notion_url,omitempty"`
}

// Stage markers for events that do not belong to a pipeline stage.
const (
	StageConnected = "connected"
	StageComplete  = "complete"
	StageError     = "error"
	StageCanceled  = "canceled"
)

const subscriberBuffer = 16

// Subscriber receives a run's events in publish order. The channel is
// closed when the subscriber is dropped or unsubscribed.
type Subscriber struct {
	runID string
	ch    chan Event
}

func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Broadcaster fans progress events out to per-run subscriber sets.
// Delivery is best effort: a subscriber that cannot keep up is dropped
// so it can never stall delivery to the others.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscriber]struct{}
	logger *slog.Logger
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[string]map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscriber for a run. When snapshot is
// non-nil its event is enqueued before registration completes, under
// the same critical section as publishes, so the subscriber sees the
// snapshot first and then every later event with nothing lost between.
func (b *Broadcaster) Subscribe(runID string, snapshot func() (Event, bool)) *Subscriber {
	sub := &Subscriber{
		runID: runID,
		ch:    make(chan Event, subscriberBuffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if snapshot != nil {
		if ev, ok := snapshot(); ok {
			sub.ch <- ev
		}
	}

	set, ok := b.subs[runID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subs[runID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Publish delivers an event to every subscriber of the run. A full
// subscriber buffer removes that subscriber and closes its channel;
// delivery to the rest continues uninterrupted.
func (b *Broadcaster) Publish(runID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[runID]
	if !ok {
		return
	}
	for sub := range set {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("dropping slow progress subscriber", "run_id", runID)
			delete(set, sub)
			close(sub.ch)
		}
	}
	if len(set) == 0 {
		delete(b.subs, runID)
	}
}

// Unsubscribe removes a subscriber and closes its channel. It is safe
// to call for a subscriber that was already dropped.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[sub.runID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(b.subs, sub.runID)
	}
}

// SubscriberCount reports the current subscriber count for a run.
func (b *Broadcaster) SubscriberCount(runID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[runID])
}
