package encounter

import (
	"fmt"
	"sort"
)

// XPPerLevel is the experience needed for each level after the first
const XPPerLevel = 100

// Profile is the persistent player state the combat reads and the
// victory grant writes. Combat itself never changes it.
type Profile struct {
	Level   int             `json:"level"`
	XP      int             `json:"xp"`
	Yen     int             `json:"yen"`
	Flags   map[string]bool `json:"flags"`
	Learned []string        `json:"learned"` // word ids, in first-seen order
	Items   map[string]int  `json:"items"`   // item id -> count
}

// NewProfile creates a profile at level with a starting inventory
func NewProfile(level, yen int, items map[string]int) Profile {
	if level < 1 {
		level = 1
	}
	p := Profile{
		Level:   level,
		XP:      XPPerLevel * (level - 1),
		Yen:     yen,
		Flags:   map[string]bool{},
		Learned: []string{},
		Items:   map[string]int{},
	}
	for id, n := range items {
		if n > 0 {
			p.Items[id] = n
		}
	}
	return p
}

// LevelForXP returns the level reached with xp
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return 1 + xp/XPPerLevel
}

// BattleFlag is the story flag set after an enemy is beaten
func BattleFlag(enemyID string) string {
	return fmt.Sprintf("battle_done:%s", enemyID)
}

// grant applies a victory reward and returns the new level
func (p *Profile) grant(enemyID string, yen, xp int) int {
	p.Yen += yen
	p.XP += xp
	if lvl := LevelForXP(p.XP); lvl > p.Level {
		p.Level = lvl
	}
	p.Flags[BattleFlag(enemyID)] = true
	return p.Level
}

// learn records word ids not seen before
func (p *Profile) learn(ids []string) int {
	known := make(map[string]struct{}, len(p.Learned))
	for _, id := range p.Learned {
		known[id] = struct{}{}
	}
	added := 0
	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}
		known[id] = struct{}{}
		p.Learned = append(p.Learned, id)
		added++
	}
	return added
}

func (p Profile) clone() Profile {
	out := p
	out.Flags = make(map[string]bool, len(p.Flags))
	for k, v := range p.Flags {
		out.Flags[k] = v
	}
	out.Items = make(map[string]int, len(p.Items))
	for k, v := range p.Items {
		out.Items[k] = v
	}
	out.Learned = append([]string{}, p.Learned...)
	return out
}

// itemIDs returns the ids of items in stock, sorted
func (p Profile) itemIDs() []string {
	ids := make([]string, 0, len(p.Items))
	for id, n := range p.Items {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
