// Package encounter runs one player's combat. It wires the combat
// controller to the animation sequencer, the input arbiter and the
// mini-games, and owns the menus and the victory grant around the loop.
package encounter

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"kotoba-quest/internal/animation"
	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/content"
	"kotoba-quest/internal/eventlog"
	"kotoba-quest/internal/input"
	"kotoba-quest/internal/minigame"
)

// Ranker is told when a player's experience changes
type Ranker interface {
	UpdateScore(id string, score float64)
}

// Deps are the collaborators shared by every encounter. Catalog is required.
type Deps struct {
	Catalog   *content.Catalog
	Settings  minigame.DifficultySource
	Anim      animation.Config
	Bindings  input.Bindings
	EventLog  *eventlog.EventLog
	Metrics   Metrics
	Ranker    Ranker
	Overworld input.Consumer // receives input while no combat runs
	Logger    *zap.Logger
	Clock     minigame.Clock
	NewRand   func() *rand.Rand
}

func (d Deps) withDefaults() Deps {
	if d.Settings == nil {
		d.Settings = minigame.FixedDifficulty(combat.DifficultyMedium)
	}
	if d.Anim.TickRate <= 0 {
		d.Anim = animation.DefaultConfig(0)
	}
	if d.Metrics == nil {
		d.Metrics = NopMetrics{}
	}
	if d.Overworld == nil {
		d.Overworld = input.ConsumerFunc(func(input.Action) bool { return false })
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.NewRand == nil {
		d.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) }
	}
	return d
}

// Reward is what a victory granted
type Reward struct {
	EnemyID string `json:"enemyId"`
	Yen     int    `json:"yen"`
	XP      int    `json:"xp"`
	Level   int    `json:"level"`
	LevelUp bool   `json:"levelUp"`
}

// Encounter is one player's combat runtime. Every exported method is safe
// for concurrent use; controller events are handled with mu held.
type Encounter struct {
	id   string
	mu   sync.Mutex
	deps Deps
	log  *zap.Logger

	ctrl  *combat.Controller
	seq   *animation.Sequencer
	arb   *input.Arbiter
	games *minigame.Factory
	rng   *rand.Rand

	profile  Profile
	game     minigame.Game
	lastGame *minigame.View
	menu     *menu
	items    *menu
	popItems func()
	notice   string

	changes     atomic.Uint64
	lastSeen    atomic.Int64
	unsubscribe []func()
}

// New creates an idle encounter for profile
func New(id string, profile Profile, deps Deps) *Encounter {
	deps = deps.withDefaults()
	log := deps.Logger.With(zap.String("session", shortID(id)))

	e := &Encounter{
		id:      id,
		deps:    deps,
		log:     log,
		rng:     deps.NewRand(),
		profile: profile.clone(),
	}
	e.ctrl = combat.NewController(combat.Options{
		Rand:        e.rng,
		Logger:      log,
		PlayerLevel: func() int { return e.profile.Level },
	})
	e.seq = animation.NewSequencer(deps.Anim, e.ctrl, log)
	e.arb = input.NewArbiter(deps.Bindings, log)
	e.games = minigame.NewFactory(deps.Settings, e.rng, deps.Clock, log)

	e.unsubscribe = append(e.unsubscribe,
		e.ctrl.Subscribe(e.seq.OnEvent),
		e.ctrl.Subscribe(e.onEvent),
	)
	e.arb.Focus(FocusOverworld, deps.Overworld)
	e.touch()
	return e
}

// ID returns the session id
func (e *Encounter) ID() string { return e.id }

// =============================================================================
// COMBAT FLOW
// =============================================================================

// StartCombat starts a fight with enemyID. An empty id with random set
// picks an enemy from the catalog. A running combat is abandoned.
func (e *Encounter) StartCombat(enemyID string, random bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	return e.startCombat(enemyID, random)
}

func (e *Encounter) startCombat(enemyID string, random bool) error {
	var enemy combat.Enemy
	if enemyID == "" && random {
		all := e.deps.Catalog.Enemies()
		if len(all) == 0 {
			return fmt.Errorf("%w: catalog is empty", content.ErrUnknownEnemy)
		}
		enemy = all[e.rng.Intn(len(all))]
	} else {
		var err error
		if enemy, err = e.deps.Catalog.Enemy(enemyID); err != nil {
			return err
		}
	}

	if snap := e.ctrl.Snapshot(); snap.IsActive {
		e.finish(snap, OutcomeAbort)
	}
	return e.begin(enemy, random)
}

func (e *Encounter) begin(enemy combat.Enemy, random bool) error {
	e.cancelGame()
	if err := e.ctrl.StartCombat(enemy, random); err != nil {
		return err
	}
	e.notice = ""
	return nil
}

// SelectMiniGame starts the mini-game kind from the action menu. When
// there is not enough vocabulary the choice is declined: combat stays in
// action-select and the view carries a notice.
func (e *Encounter) SelectMiniGame(kind combat.MiniGameKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	return e.selectMiniGame(kind)
}

func (e *Encounter) selectMiniGame(kind combat.MiniGameKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", combat.ErrInvalidMiniGame, kind)
	}
	snap := e.ctrl.Snapshot()
	if !snap.IsActive {
		return combat.ErrNoCombat
	}
	if snap.Phase != combat.PhaseActionSelect {
		return fmt.Errorf("%w: select in %s", combat.ErrInvalidPhase, snap.Phase)
	}

	var g minigame.Game
	report := func(t combat.Tier) {
		if e.game != nil && e.game == g {
			e.graded(g, t)
		}
	}
	learned := e.deps.Catalog.WordsByID(e.profile.Learned)
	var err error
	g, err = e.games.New(kind, learned, e.deps.Catalog.Words(), report)
	if errors.Is(err, minigame.ErrPoolTooSmall) {
		e.notice = fmt.Sprintf("Not enough words for %s yet.", kind)
		e.bump()
		return nil
	}
	if err != nil {
		return err
	}

	e.game = g
	e.lastGame = nil
	e.notice = ""
	if err := e.ctrl.SelectMiniGame(kind); err != nil {
		g.Cancel()
		e.game = nil
		return err
	}
	return nil
}

// graded runs inside the game's report callback
func (e *Encounter) graded(g minigame.Game, t combat.Tier) {
	snap := e.ctrl.Snapshot()
	weak := snap.WeakPoint(g.Kind())
	e.deps.Metrics.MiniGameGraded(g.Kind(), t, weak)
	e.record(eventlog.TypeMiniGameResult, snap.CurrentRound, eventlog.MiniGamePayload{
		Game:     string(g.Kind()),
		Tier:     string(t),
		Weakness: weak,
	})

	ids := make([]string, 0, len(g.Words()))
	for _, w := range g.Words() {
		ids = append(ids, w.ID)
	}
	if n := e.profile.learn(ids); n > 0 {
		e.log.Debug("words learned", zap.Int("added", n), zap.Int("total", len(e.profile.Learned)))
	}

	v := g.View()
	e.lastGame = &v
	e.game = nil
	if err := e.ctrl.CompleteMiniGame(t); err != nil {
		e.log.Warn("mini-game result rejected", zap.String("tier", string(t)), zap.Error(err))
	}
}

// UseItem spends one itemID from the inventory instead of attacking
func (e *Encounter) UseItem(itemID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	return e.useItem(itemID)
}

func (e *Encounter) useItem(itemID string) error {
	item, err := e.deps.Catalog.Item(itemID)
	if err != nil {
		return err
	}
	if e.profile.Items[itemID] <= 0 {
		return fmt.Errorf("%w: %s", ErrNoItem, itemID)
	}
	if err := e.ctrl.UseItem(item.Heal, item.Name); err != nil {
		return err
	}
	e.profile.Items[itemID]--
	if e.profile.Items[itemID] == 0 {
		delete(e.profile.Items, itemID)
	}
	e.bump()
	return nil
}

// Continue collects the victory reward and leaves combat
func (e *Encounter) Continue() (Reward, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()

	snap := e.ctrl.Snapshot()
	if err := requirePhase(snap, combat.PhaseVictory); err != nil {
		return Reward{}, err
	}
	return e.collect(snap), nil
}

// collect grants the reward on the caller side of the combat loop
func (e *Encounter) collect(snap combat.Snapshot) Reward {
	before := e.profile.Level
	level := e.profile.grant(snap.Enemy.ID, snap.Enemy.YenReward, snap.Enemy.XPReward)
	r := Reward{
		EnemyID: snap.Enemy.ID,
		Yen:     snap.Enemy.YenReward,
		XP:      snap.Enemy.XPReward,
		Level:   level,
		LevelUp: level > before,
	}
	e.record(eventlog.TypeReward, snap.CurrentRound, eventlog.RewardPayload{
		EnemyID: r.EnemyID,
		Yen:     r.Yen,
		XP:      r.XP,
		Level:   r.Level,
	})
	if e.deps.Ranker != nil {
		e.deps.Ranker.UpdateScore(e.id, float64(e.profile.XP))
	}
	e.log.Info("victory reward granted",
		zap.String("enemy", r.EnemyID),
		zap.Int("yen", r.Yen),
		zap.Int("xp", r.XP),
		zap.Int("level", r.Level))

	e.finish(snap, OutcomeVictory)
	e.ctrl.EndCombat()
	return r
}

// Retry restarts a lost fight against the same enemy
func (e *Encounter) Retry() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()

	snap := e.ctrl.Snapshot()
	if err := requirePhase(snap, combat.PhaseDefeat); err != nil {
		return err
	}
	return e.retry(snap)
}

func (e *Encounter) retry(snap combat.Snapshot) error {
	e.finish(snap, OutcomeRetry)
	return e.begin(*snap.Enemy, snap.IsRandomEncounter)
}

// GiveUp leaves a lost fight
func (e *Encounter) GiveUp() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()

	snap := e.ctrl.Snapshot()
	if err := requirePhase(snap, combat.PhaseDefeat); err != nil {
		return err
	}
	e.giveUp(snap)
	return nil
}

func (e *Encounter) giveUp(snap combat.Snapshot) {
	e.finish(snap, OutcomeDefeat)
	e.ctrl.EndCombat()
}

// Abort ends the combat in any phase
func (e *Encounter) Abort() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()

	snap := e.ctrl.Snapshot()
	if !snap.IsActive {
		return combat.ErrNoCombat
	}
	e.finish(snap, OutcomeAbort)
	e.cancelGame()
	e.ctrl.EndCombat()
	return nil
}

// finish records how a combat ended
func (e *Encounter) finish(snap combat.Snapshot, outcome string) {
	e.deps.Metrics.CombatEnded(outcome)
	e.record(eventlog.TypeCombatEnd, snap.CurrentRound, eventlog.CombatEndPayload{
		Outcome: outcome,
		Rounds:  snap.CurrentRound,
	})
}

func requirePhase(snap combat.Snapshot, want combat.Phase) error {
	if !snap.IsActive {
		return combat.ErrNoCombat
	}
	if snap.Phase != want {
		return fmt.Errorf("%w: need %s, in %s", combat.ErrInvalidPhase, want, snap.Phase)
	}
	return nil
}

// =============================================================================
// MINI-GAME MOVES
// =============================================================================

// AnswerQuiz picks choice i in the running quiz
func (e *Encounter) AnswerQuiz(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	q, ok := e.game.(*minigame.Quiz)
	if !ok {
		return fmt.Errorf("%w: quiz", ErrNoMiniGame)
	}
	defer e.bump()
	return q.Answer(i)
}

// PickMatch selects entry idx on side in the running matching game
func (e *Encounter) PickMatch(side minigame.Side, idx int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	m, ok := e.game.(*minigame.Matching)
	if !ok {
		return fmt.Errorf("%w: matching", ErrNoMiniGame)
	}
	defer e.bump()
	return m.Pick(side, idx)
}

// PlaceTile moves tile i onto the answer row of the running unscramble
func (e *Encounter) PlaceTile(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	u, ok := e.game.(*minigame.Unscramble)
	if !ok {
		return fmt.Errorf("%w: unscramble", ErrNoMiniGame)
	}
	defer e.bump()
	return u.Place(i)
}

// UndoTile takes back the last placed tile
func (e *Encounter) UndoTile() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	u, ok := e.game.(*minigame.Unscramble)
	if !ok {
		return fmt.Errorf("%w: unscramble", ErrNoMiniGame)
	}
	defer e.bump()
	return u.Undo()
}

func (e *Encounter) cancelGame() {
	if e.game != nil {
		e.game.Cancel()
		e.game = nil
	}
	e.lastGame = nil
}

// =============================================================================
// INPUT & CLOCK
// =============================================================================

// HandleInput routes a raw device event to whatever holds focus
func (e *Encounter) HandleInput(raw input.RawEvent) (input.Action, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	act, used := e.arb.Dispatch(raw)
	if used {
		e.bump()
	}
	return act, used
}

// Tick advances the mini-game deadline and the animation clock by one tick
func (e *Encounter) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game != nil {
		e.game.Tick()
	}
	e.seq.Tick()
}

// Busy reports whether a combat is running
func (e *Encounter) Busy() bool {
	return e.ctrl.Active()
}

// LastSeen returns when a player last called into the encounter
func (e *Encounter) LastSeen() time.Time {
	return time.Unix(0, e.lastSeen.Load())
}

// Version changes whenever the view may have changed
func (e *Encounter) Version() uint64 {
	return e.changes.Load() + e.seq.Revision()
}

// Close cancels the running game and detaches from the controller
func (e *Encounter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelGame()
	e.ctrl.EndCombat()
	for _, cancel := range e.unsubscribe {
		cancel()
	}
	e.unsubscribe = nil
}

func (e *Encounter) touch() {
	e.lastSeen.Store(e.deps.Clock().UnixNano())
}

func (e *Encounter) bump() {
	e.changes.Add(1)
}

func (e *Encounter) record(t eventlog.Type, round int, payload interface{}) {
	if e.deps.EventLog != nil {
		e.deps.EventLog.EmitSimple(t, e.id, round, payload)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
