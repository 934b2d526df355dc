// Package minigame implements the timed vocabulary games a player attacks with.
// Every game measures wall-clock time from creation and reports exactly one
// tier through its Reporter.
package minigame

import (
	"errors"
	"time"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/content"
	"kotoba-quest/internal/input"
)

var (
	// ErrFinished is returned for moves after the game reported its tier
	ErrFinished = errors.New("minigame: already finished")
	// ErrBadMove is returned for out-of-range or repeated selections
	ErrBadMove = errors.New("minigame: invalid move")
	// ErrPoolTooSmall is returned when neither word pool can fill a game
	ErrPoolTooSmall = errors.New("minigame: not enough vocabulary")
)

// Clock returns the current time
type Clock func() time.Time

// Reporter receives the tier of a finished game
type Reporter func(combat.Tier)

// Game is a running mini-game
type Game interface {
	input.Consumer
	Kind() combat.MiniGameKind
	// Tick checks the time limit
	Tick()
	Done() bool
	Result() (combat.Tier, bool)
	// Cancel stops the game without reporting
	Cancel()
	View() View
	Words() []content.Word
}

// View is the client-facing state of a game
type View struct {
	Kind        combat.MiniGameKind `json:"kind"`
	Timed       bool                `json:"timed"`
	RemainingMs int                 `json:"remainingMs"`
	TotalMs     int                 `json:"totalMs"`
	Done        bool                `json:"done"`
	Tier        combat.Tier         `json:"tier,omitempty"`
	Quiz        *QuizView           `json:"quiz,omitempty"`
	Matching    *MatchingView       `json:"matching,omitempty"`
	Unscramble  *UnscrambleView     `json:"unscramble,omitempty"`
}

// timer is the shared clock and report-once contract
type timer struct {
	kind      combat.MiniGameKind
	cfg       combat.TimerConfig
	clock     Clock
	startedAt time.Time
	report    Reporter
	done      bool
	cancelled bool
	tier      combat.Tier
}

func newTimer(kind combat.MiniGameKind, cfg combat.TimerConfig, clock Clock, report Reporter) timer {
	if clock == nil {
		clock = time.Now
	}
	return timer{kind: kind, cfg: cfg, clock: clock, startedAt: clock(), report: report}
}

func (t *timer) Kind() combat.MiniGameKind { return t.kind }

func (t *timer) Done() bool { return t.done }

func (t *timer) Result() (combat.Tier, bool) {
	if !t.done || t.cancelled {
		return "", false
	}
	return t.tier, true
}

func (t *timer) Cancel() {
	if !t.done {
		t.done = true
		t.cancelled = true
	}
}

func (t *timer) elapsedMs() int64 {
	return t.clock().Sub(t.startedAt).Milliseconds()
}

func (t *timer) expired() bool {
	return !t.cfg.Untimed() && t.elapsedMs() >= int64(t.cfg.TotalMs)
}

// Tick reports a miss once the time limit is reached
func (t *timer) Tick() {
	if !t.done && t.expired() {
		t.finish(combat.TierMiss)
	}
}

// succeed grades a correct completion
func (t *timer) succeed() {
	switch {
	case t.cfg.Untimed():
		t.finish(combat.TierFast)
	case t.expired():
		t.finish(combat.TierMiss)
	default:
		t.finish(combat.Grade(t.elapsedMs(), t.cfg))
	}
}

func (t *timer) fail() {
	t.finish(combat.TierMiss)
}

func (t *timer) finish(tier combat.Tier) {
	if t.done {
		return
	}
	t.done = true
	t.tier = tier
	if t.report != nil {
		t.report(tier)
	}
}

func (t *timer) view() View {
	v := View{
		Kind:  t.kind,
		Timed: !t.cfg.Untimed(),
		Done:  t.done && !t.cancelled,
		Tier:  t.tier,
	}
	if v.Timed {
		v.TotalMs = t.cfg.TotalMs
		remaining := int64(t.cfg.TotalMs) - t.elapsedMs()
		if remaining < 0 || t.done {
			remaining = 0
		}
		v.RemainingMs = int(remaining)
	}
	return v
}

// step moves a cursor by delta inside [0, n), wrapping around
func step(cursor, delta, n int) int {
	if n <= 0 {
		return 0
	}
	return ((cursor+delta)%n + n) % n
}
