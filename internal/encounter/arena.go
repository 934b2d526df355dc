package encounter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"kotoba-quest/internal/session"
)

// ArenaConfig sizes the arena and seeds new profiles
type ArenaConfig struct {
	TickRate      int
	MaxEncounters int
	IdleTimeout   time.Duration // idle sessions without a combat are evicted
	StartLevel    int
	StartingYen   int
	StartingItems map[string]int
}

// DefaultArenaConfig returns production defaults
func DefaultArenaConfig() ArenaConfig {
	return ArenaConfig{
		TickRate:      30,
		MaxEncounters: 10000,
		IdleTimeout:   30 * time.Minute,
		StartLevel:    1,
	}
}

// Arena holds every live encounter and ticks them from one loop
type Arena struct {
	cfg   ArenaConfig
	deps  Deps
	store session.Store[*Encounter]
	log   *zap.Logger

	mu       sync.Mutex
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}

	tickCount uint64
}

// NewArena creates a stopped arena. A nil store keeps encounters in memory.
func NewArena(cfg ArenaConfig, deps Deps, store session.Store[*Encounter]) *Arena {
	deps = deps.withDefaults()
	if cfg.TickRate <= 0 {
		cfg.TickRate = 30
	}
	if store == nil {
		store = session.NewMemoryStore[*Encounter]()
	}
	deps.Anim.TickRate = cfg.TickRate
	return &Arena{
		cfg:   cfg,
		deps:  deps,
		store: store,
		log:   deps.Logger,
	}
}

// Get returns the encounter for id
func (a *Arena) Get(ctx context.Context, id string) (*Encounter, error) {
	if id == "" {
		return nil, ErrUnknownSession
	}
	e, ok, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownSession
	}
	return e, nil
}

// Create starts a new session with a fresh profile
func (a *Arena) Create(ctx context.Context) (*Encounter, error) {
	if a.cfg.MaxEncounters > 0 && a.store.Len() >= a.cfg.MaxEncounters {
		return nil, ErrArenaFull
	}
	id := a.store.NewID()
	profile := NewProfile(a.cfg.StartLevel, a.cfg.StartingYen, a.cfg.StartingItems)
	e := New(id, profile, a.deps)
	if err := a.store.Put(ctx, id, e); err != nil {
		e.Close()
		return nil, err
	}
	a.log.Info("session created", zap.String("session", shortID(id)), zap.Int("sessions", a.store.Len()))
	return e, nil
}

// GetOrCreate returns the encounter for id, creating a session when id is unknown
func (a *Arena) GetOrCreate(ctx context.Context, id string) (*Encounter, bool, error) {
	if e, err := a.Get(ctx, id); err == nil {
		return e, false, nil
	}
	e, err := a.Create(ctx)
	return e, err == nil, err
}

// Len returns the number of live sessions
func (a *Arena) Len() int {
	return a.store.Len()
}

// Start begins the tick loop
func (a *Arena) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	a.running = true
	a.stopChan = make(chan struct{})
	a.done = make(chan struct{})
	a.ticker = time.NewTicker(time.Second / time.Duration(a.cfg.TickRate))

	go func(ticker *time.Ticker, stop, done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				a.Tick()
			case <-stop:
				return
			}
		}
	}(a.ticker, a.stopChan, a.done)

	a.log.Info("arena started", zap.Int("tps", a.cfg.TickRate))
}

// Stop ends the tick loop and waits for the current tick to finish
func (a *Arena) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.ticker.Stop()
	close(a.stopChan)
	done := a.done
	a.mu.Unlock()

	<-done
	a.log.Info("arena stopped")
}

// Tick advances every encounter one tick and evicts idle sessions
func (a *Arena) Tick() {
	start := time.Now()
	a.tickCount++
	evictEvery := uint64(a.cfg.TickRate) * 10

	var idle []string
	n := 0
	a.store.Range(func(id string, e *Encounter) bool {
		n++
		e.Tick()
		if a.tickCount%evictEvery == 0 && a.expired(e) {
			idle = append(idle, id)
		}
		return true
	})
	for _, id := range idle {
		a.evict(id)
	}
	a.deps.Metrics.ArenaTick(time.Since(start), n)
}

func (a *Arena) expired(e *Encounter) bool {
	if a.cfg.IdleTimeout <= 0 || e.Busy() {
		return false
	}
	return a.deps.Clock().Sub(e.LastSeen()) > a.cfg.IdleTimeout
}

func (a *Arena) evict(id string) {
	ctx := context.Background()
	e, ok, _ := a.store.Get(ctx, id)
	if !ok {
		return
	}
	_ = a.store.Delete(ctx, id)
	e.Close()
	a.log.Info("session evicted", zap.String("session", shortID(id)))
}
