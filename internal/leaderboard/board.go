// Package leaderboard ranks players by experience.
package leaderboard

import (
	"math/rand"
	"sync"
	"time"
)

// Entry is one ranked player
type Entry struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// Board is a concurrent leaderboard with O(log n) updates and rank queries
type Board struct {
	mu     sync.RWMutex
	list   *skipList
	scores map[string]float64
}

// New creates an empty board
func New() *Board {
	return &Board{
		list:   newSkipList(rand.New(rand.NewSource(time.Now().UnixNano()))),
		scores: make(map[string]float64),
	}
}

// UpdateScore sets the score for id, repositioning it
func (b *Board) UpdateScore(id string, score float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.scores[id]; ok {
		if old == score {
			return
		}
		b.list.remove(Entry{ID: id, Score: old})
	}
	b.list.insert(Entry{ID: id, Score: score})
	b.scores[id] = score
}

// Remove drops id from the board
func (b *Board) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	old, ok := b.scores[id]
	if !ok {
		return false
	}
	delete(b.scores, id)
	return b.list.remove(Entry{ID: id, Score: old})
}

// Rank returns the 1-based rank of id, or 0 when absent
func (b *Board) Rank(id string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	score, ok := b.scores[id]
	if !ok {
		return 0
	}
	return b.list.rank(Entry{ID: id, Score: score})
}

// Score returns the score of id
func (b *Board) Score(id string) (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.scores[id]
	return s, ok
}

// Top returns the n best entries
func (b *Board) Top(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.list.slice(1, n)
}

// Around returns id with up to above better and below worse entries
func (b *Board) Around(id string, above, below int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	score, ok := b.scores[id]
	if !ok {
		return nil
	}
	r := b.list.rank(Entry{ID: id, Score: score})
	return b.list.slice(r-above, r+below)
}

// Len returns the number of ranked players
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.list.length
}
