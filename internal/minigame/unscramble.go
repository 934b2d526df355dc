package minigame

import (
	"fmt"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/content"
	"kotoba-quest/internal/input"
)

const maxScrambleTries = 10

// Unscramble asks for the kana reading rebuilt from shuffled tiles.
// There is no wrong state: the game completes once the built string equals the reading.
type Unscramble struct {
	timer
	word   content.Word
	tiles  []rune
	used   []bool
	placed []int
	cursor int
}

// UnscrambleView is the client-facing unscramble state
type UnscrambleView struct {
	Prompt   string   `json:"prompt"`
	English  string   `json:"english"`
	Tiles    []string `json:"tiles"`
	Used     []bool   `json:"used"`
	Built    string   `json:"built"`
	Length   int      `json:"length"`
	Mismatch bool     `json:"mismatch"` // all tiles placed in the wrong order
	Cursor   int      `json:"cursor"`
}

func newUnscramble(pool []content.Word, rng Shuffler, cfg combat.TimerConfig, clock Clock, report Reporter) *Unscramble {
	word := pool[rng.Intn(len(pool))]
	target := []rune(word.Kana)
	tiles := append([]rune(nil), target...)
	for try := 0; try < maxScrambleTries; try++ {
		rng.Shuffle(len(tiles), func(i, j int) { tiles[i], tiles[j] = tiles[j], tiles[i] })
		if string(tiles) != word.Kana {
			break
		}
	}
	return &Unscramble{
		timer: newTimer(combat.MiniGameUnscramble, cfg, clock, report),
		word:  word,
		tiles: tiles,
		used:  make([]bool, len(tiles)),
	}
}

// Place appends tile i to the answer
func (u *Unscramble) Place(i int) error {
	if u.done {
		return ErrFinished
	}
	if i < 0 || i >= len(u.tiles) || u.used[i] {
		return fmt.Errorf("%w: tile %d", ErrBadMove, i)
	}
	u.used[i] = true
	u.placed = append(u.placed, i)
	if len(u.placed) == len(u.tiles) && u.built() == u.word.Kana {
		u.succeed()
	}
	return nil
}

// Undo removes the last placed tile
func (u *Unscramble) Undo() error {
	if u.done {
		return ErrFinished
	}
	if n := len(u.placed); n > 0 {
		u.used[u.placed[n-1]] = false
		u.placed = u.placed[:n-1]
	}
	return nil
}

func (u *Unscramble) built() string {
	out := make([]rune, len(u.placed))
	for i, t := range u.placed {
		out[i] = u.tiles[t]
	}
	return string(out)
}

// HandleAction moves over the tiles, places with confirm and undoes with cancel
func (u *Unscramble) HandleAction(a input.Action) bool {
	if u.done {
		return false
	}
	switch a.Kind {
	case input.KindNavigate:
		switch a.Dir {
		case input.DirLeft, input.DirUp:
			u.cursor = step(u.cursor, -1, len(u.tiles))
		case input.DirRight, input.DirDown:
			u.cursor = step(u.cursor, 1, len(u.tiles))
		}
		return true
	case input.KindConfirm:
		return u.Place(u.cursor) == nil
	case input.KindCancel:
		return u.Undo() == nil
	}
	return false
}

// View returns the unscramble state
func (u *Unscramble) View() View {
	v := u.view()
	uv := &UnscrambleView{
		Prompt:  u.word.Display(),
		English: u.word.English,
		Tiles:   make([]string, len(u.tiles)),
		Used:    append([]bool(nil), u.used...),
		Built:   u.built(),
		Length:  len(u.tiles),
		Cursor:  u.cursor,
	}
	for i, r := range u.tiles {
		uv.Tiles[i] = string(r)
	}
	uv.Mismatch = !u.done && len(u.placed) == len(u.tiles)
	v.Unscramble = uv
	return v
}

// Words returns the word being unscrambled
func (u *Unscramble) Words() []content.Word {
	return []content.Word{u.word}
}
