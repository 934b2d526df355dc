package minigame

import (
	"fmt"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/content"
	"kotoba-quest/internal/input"
)

// Side is a matching column
type Side string

const (
	SideJapanese Side = "ja"
	SideEnglish  Side = "en"
)

// Matching pairs Japanese words with their meanings. A wrong pair only
// clears the selection; the clock keeps running.
type Matching struct {
	timer
	left    []content.Word // Japanese column
	right   []content.Word // English column, shuffled
	matched map[string]bool
	selL    int
	selR    int
	fumbles int
	flash   bool

	cursorSide Side
	cursorIdx  int
}

// MatchingView is the client-facing matching state
type MatchingView struct {
	Japanese   []string `json:"japanese"`
	English    []string `json:"english"`
	MatchedJa  []bool   `json:"matchedJa"`
	MatchedEn  []bool   `json:"matchedEn"`
	SelectedJa int      `json:"selectedJa"`
	SelectedEn int      `json:"selectedEn"`
	Wrong      bool     `json:"wrong"` // last pair was wrong
	Fumbles    int      `json:"fumbles"`
	CursorSide Side     `json:"cursorSide"`
	CursorIdx  int      `json:"cursorIdx"`
}

func newMatching(pool []content.Word, rng Shuffler, cfg combat.TimerConfig, clock Clock, report Reporter) *Matching {
	left := sample(rng, pool, MaxPairs)
	right := append([]content.Word(nil), left...)
	rng.Shuffle(len(right), func(i, j int) { right[i], right[j] = right[j], right[i] })
	return &Matching{
		timer:      newTimer(combat.MiniGameMatching, cfg, clock, report),
		left:       left,
		right:      right,
		matched:    make(map[string]bool, len(left)),
		selL:       -1,
		selR:       -1,
		cursorSide: SideJapanese,
	}
}

// Pick selects an entry on one side; a pair is judged once both sides are selected
func (m *Matching) Pick(side Side, idx int) error {
	if m.done {
		return ErrFinished
	}
	col := m.column(side)
	if col == nil || idx < 0 || idx >= len(col) {
		return fmt.Errorf("%w: %s %d", ErrBadMove, side, idx)
	}
	if m.matched[col[idx].ID] {
		return fmt.Errorf("%w: %s %d already matched", ErrBadMove, side, idx)
	}
	m.flash = false
	if side == SideJapanese {
		m.selL = idx
	} else {
		m.selR = idx
	}
	if m.selL < 0 || m.selR < 0 {
		return nil
	}

	if m.left[m.selL].ID == m.right[m.selR].ID {
		m.matched[m.left[m.selL].ID] = true
	} else {
		m.fumbles++
		m.flash = true
	}
	m.selL, m.selR = -1, -1
	if len(m.matched) == len(m.left) {
		m.succeed()
	}
	return nil
}

// Fumbles returns how many wrong pairs were tried
func (m *Matching) Fumbles() int { return m.fumbles }

func (m *Matching) column(side Side) []content.Word {
	switch side {
	case SideJapanese:
		return m.left
	case SideEnglish:
		return m.right
	}
	return nil
}

// HandleAction moves within and across the two columns
func (m *Matching) HandleAction(a input.Action) bool {
	if m.done {
		return false
	}
	switch a.Kind {
	case input.KindNavigate:
		switch a.Dir {
		case input.DirUp:
			m.cursorIdx = step(m.cursorIdx, -1, len(m.left))
		case input.DirDown:
			m.cursorIdx = step(m.cursorIdx, 1, len(m.left))
		case input.DirLeft:
			m.cursorSide = SideJapanese
		case input.DirRight:
			m.cursorSide = SideEnglish
		}
		return true
	case input.KindConfirm:
		return m.Pick(m.cursorSide, m.cursorIdx) == nil
	case input.KindCancel:
		m.selL, m.selR = -1, -1
		return true
	}
	return false
}

// View returns the matching state
func (m *Matching) View() View {
	v := m.view()
	mv := &MatchingView{
		Japanese:   make([]string, len(m.left)),
		English:    make([]string, len(m.right)),
		MatchedJa:  make([]bool, len(m.left)),
		MatchedEn:  make([]bool, len(m.right)),
		SelectedJa: m.selL,
		SelectedEn: m.selR,
		Wrong:      m.flash,
		Fumbles:    m.fumbles,
		CursorSide: m.cursorSide,
		CursorIdx:  m.cursorIdx,
	}
	for i, w := range m.left {
		mv.Japanese[i] = w.Display()
		mv.MatchedJa[i] = m.matched[w.ID]
	}
	for i, w := range m.right {
		mv.English[i] = w.English
		mv.MatchedEn[i] = m.matched[w.ID]
	}
	v.Matching = mv
	return v
}

// Words returns the words shown
func (m *Matching) Words() []content.Word {
	return append([]content.Word(nil), m.left...)
}
