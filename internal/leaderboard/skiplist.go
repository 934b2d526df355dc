package leaderboard

import "math/rand"

const (
	maxLevel    = 32
	levelChance = 0.25
)

// node spans count how many level-0 nodes each forward pointer skips,
// which makes rank lookups O(log n)
type node struct {
	entry Entry
	next  []*node
	span  []int
}

// skipList orders entries by score descending, then id ascending.
// It is not safe for concurrent use; Board guards it.
type skipList struct {
	head   *node
	level  int
	length int
	rng    *rand.Rand
}

func newSkipList(rng *rand.Rand) *skipList {
	return &skipList{
		head:  &node{next: make([]*node, maxLevel), span: make([]int, maxLevel)},
		level: 1,
		rng:   rng,
	}
}

func before(a, b Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

func same(a, b Entry) bool {
	return a.ID == b.ID && a.Score == b.Score
}

func (sl *skipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && sl.rng.Float64() < levelChance {
		lvl++
	}
	return lvl
}

// insert adds e; the caller guarantees e.ID is not present
func (sl *skipList) insert(e Entry) {
	var update [maxLevel]*node
	var rank [maxLevel]int

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		if i < sl.level-1 {
			rank[i] = rank[i+1]
		}
		for x.next[i] != nil && before(x.next[i].entry, e) {
			rank[i] += x.span[i]
			x = x.next[i]
		}
		update[i] = x
	}

	lvl := sl.randomLevel()
	if lvl > sl.level {
		for i := sl.level; i < lvl; i++ {
			rank[i] = 0
			update[i] = sl.head
			update[i].span[i] = sl.length
		}
		sl.level = lvl
	}

	n := &node{entry: e, next: make([]*node, lvl), span: make([]int, lvl)}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
		n.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = rank[0] - rank[i] + 1
	}
	for i := lvl; i < sl.level; i++ {
		update[i].span[i]++
	}
	sl.length++
}

// remove deletes the node holding exactly e
func (sl *skipList) remove(e Entry) bool {
	var update [maxLevel]*node

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && before(x.next[i].entry, e) {
			x = x.next[i]
		}
		update[i] = x
	}
	x = x.next[0]
	if x == nil || !same(x.entry, e) {
		return false
	}

	for i := 0; i < sl.level; i++ {
		if update[i].next[i] == x {
			update[i].span[i] += x.span[i] - 1
			update[i].next[i] = x.next[i]
		} else {
			update[i].span[i]--
		}
	}
	for sl.level > 1 && sl.head.next[sl.level-1] == nil {
		sl.level--
	}
	sl.length--
	return true
}

// rank returns the 1-based position of e, or 0
func (sl *skipList) rank(e Entry) int {
	rank := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && (before(x.next[i].entry, e) || same(x.next[i].entry, e)) {
			rank += x.span[i]
			x = x.next[i]
		}
		if x != sl.head && same(x.entry, e) {
			return rank
		}
	}
	return 0
}

// at returns the node at 1-based rank r
func (sl *skipList) at(r int) *node {
	if r < 1 || r > sl.length {
		return nil
	}
	traversed := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] <= r {
			traversed += x.span[i]
			x = x.next[i]
		}
		if traversed == r {
			return x
		}
	}
	return nil
}

// slice returns entries ranked start..end inclusive with Rank filled in
func (sl *skipList) slice(start, end int) []Entry {
	if start < 1 {
		start = 1
	}
	if end > sl.length {
		end = sl.length
	}
	if start > end {
		return []Entry{}
	}
	out := make([]Entry, 0, end-start+1)
	x := sl.at(start)
	for r := start; x != nil && r <= end; r++ {
		e := x.entry
		e.Rank = r
		out = append(out, e)
		x = x.next[0]
	}
	return out
}
