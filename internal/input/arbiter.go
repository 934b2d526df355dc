package input

import (
	"sync"

	"go.uber.org/zap"
)

// Consumer receives logical actions while it holds focus.
// HandleAction reports whether the action was used.
type Consumer interface {
	HandleAction(Action) bool
}

// ConsumerFunc adapts a function to Consumer
type ConsumerFunc func(Action) bool

// HandleAction calls f(a)
func (f ConsumerFunc) HandleAction(a Action) bool { return f(a) }

const recentIDs = 128

type focus struct {
	name     string
	consumer Consumer
}

// Arbiter normalizes raw events and delivers each one to the single
// consumer on top of its focus stack
type Arbiter struct {
	mu       sync.Mutex
	bindings Bindings
	stack    []focus
	log      *zap.Logger

	// Recently seen raw IDs, ring buffer plus index
	seen    [recentIDs]string
	seenAt  int
	seenSet map[string]struct{}

	dropped uint64
}

// NewArbiter creates an arbiter with bindings; nil uses DefaultBindings
func NewArbiter(bindings Bindings, logger *zap.Logger) *Arbiter {
	if bindings == nil {
		bindings = DefaultBindings
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arbiter{
		bindings: bindings,
		log:      logger,
		seenSet:  make(map[string]struct{}, recentIDs),
	}
}

// Focus replaces the whole stack with one consumer
func (a *Arbiter) Focus(name string, c Consumer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stack = append(a.stack[:0], focus{name: name, consumer: c})
}

// Push places c on top of the stack until the returned pop is called
func (a *Arbiter) Push(name string, c Consumer) (pop func()) {
	a.mu.Lock()
	a.stack = append(a.stack, focus{name: name, consumer: c})
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			for i := len(a.stack) - 1; i >= 0; i-- {
				if a.stack[i].name == name {
					a.stack = append(a.stack[:i], a.stack[i+1:]...)
					return
				}
			}
		})
	}
}

// Clear removes every consumer; input is dropped until the next Focus
func (a *Arbiter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stack = a.stack[:0]
}

// Focused returns the name of the active consumer, or "" when none
func (a *Arbiter) Focused() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.stack) == 0 {
		return ""
	}
	return a.stack[len(a.stack)-1].name
}

// Dispatch normalizes raw and hands it to the focused consumer.
// It returns the action and whether a consumer used it. The consumer
// runs on the caller's goroutine without the arbiter lock held.
func (a *Arbiter) Dispatch(raw RawEvent) (Action, bool) {
	act, ok := a.bindings.Normalize(raw)
	if !ok {
		return Action{}, false
	}

	a.mu.Lock()
	if raw.ID != "" {
		if _, dup := a.seenSet[raw.ID]; dup {
			a.dropped++
			a.mu.Unlock()
			return act, false
		}
		a.remember(raw.ID)
	}
	if len(a.stack) == 0 {
		a.mu.Unlock()
		return act, false
	}
	top := a.stack[len(a.stack)-1]
	a.mu.Unlock()

	used := top.consumer.HandleAction(act)
	a.log.Debug("input dispatched",
		zap.String("action", act.String()),
		zap.String("source", string(raw.Source)),
		zap.String("focus", top.name),
		zap.Bool("used", used))
	return act, used
}

// Dropped returns how many duplicate raw events were discarded
func (a *Arbiter) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

func (a *Arbiter) remember(id string) {
	if old := a.seen[a.seenAt]; old != "" {
		delete(a.seenSet, old)
	}
	a.seen[a.seenAt] = id
	a.seenSet[id] = struct{}{}
	a.seenAt = (a.seenAt + 1) % recentIDs
}
