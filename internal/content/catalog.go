package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"kotoba-quest/internal/combat"
)

//go:embed data/*.yaml
var defaults embed.FS

const (
	enemiesFile    = "enemies.yaml"
	vocabularyFile = "vocabulary.yaml"
	itemsFile      = "items.yaml"
)

var (
	// ErrUnknownEnemy is returned for enemy ids missing from the catalog
	ErrUnknownEnemy = errors.New("content: unknown enemy")
	// ErrUnknownItem is returned for item ids missing from the catalog
	ErrUnknownItem = errors.New("content: unknown item")
)

// Word is one vocabulary entry
type Word struct {
	ID      string `json:"id" yaml:"id"`
	Kanji   string `json:"kanji" yaml:"kanji"`
	Kana    string `json:"kana" yaml:"kana"`
	Romaji  string `json:"romaji" yaml:"romaji"`
	English string `json:"english" yaml:"english"`
}

// Display returns the kanji form, or the kana when there is none
func (w Word) Display() string {
	if w.Kanji != "" {
		return w.Kanji
	}
	return w.Kana
}

// Item is a consumable usable in action-select
type Item struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	NameJa string `json:"nameJa" yaml:"nameJa"`
	Heal   int    `json:"heal" yaml:"heal"`
	Price  int    `json:"price" yaml:"price"`
}

// Catalog holds the static game content. It is read-only after Load.
type Catalog struct {
	enemies    map[string]combat.Enemy
	enemyOrder []string
	words      []Word
	wordIndex  map[string]int
	items      map[string]Item
	itemOrder  []string
}

// Load reads the embedded content, replacing each file found in dir.
// An empty dir uses the embedded content only.
func Load(dir string) (*Catalog, error) {
	var enemies []combat.Enemy
	var words []Word
	var items []Item

	if err := readYAML(dir, enemiesFile, &enemies); err != nil {
		return nil, err
	}
	if err := readYAML(dir, vocabularyFile, &words); err != nil {
		return nil, err
	}
	if err := readYAML(dir, itemsFile, &items); err != nil {
		return nil, err
	}
	return New(enemies, words, items)
}

// New builds a catalog from in-memory content and validates it
func New(enemies []combat.Enemy, words []Word, items []Item) (*Catalog, error) {
	c := &Catalog{
		enemies:   make(map[string]combat.Enemy, len(enemies)),
		wordIndex: make(map[string]int, len(words)),
		items:     make(map[string]Item, len(items)),
	}
	for _, e := range enemies {
		if e.ID == "" || e.HP <= 0 || e.Attack < 0 {
			return nil, fmt.Errorf("content: invalid enemy %q", e.ID)
		}
		if _, dup := c.enemies[e.ID]; dup {
			return nil, fmt.Errorf("content: duplicate enemy %q", e.ID)
		}
		c.enemies[e.ID] = e
		c.enemyOrder = append(c.enemyOrder, e.ID)
	}
	for _, w := range words {
		if w.ID == "" || w.Kana == "" || w.English == "" {
			return nil, fmt.Errorf("content: invalid word %q", w.ID)
		}
		if _, dup := c.wordIndex[w.ID]; dup {
			return nil, fmt.Errorf("content: duplicate word %q", w.ID)
		}
		c.wordIndex[w.ID] = len(c.words)
		c.words = append(c.words, w)
	}
	for _, it := range items {
		if it.ID == "" || it.Heal < 0 {
			return nil, fmt.Errorf("content: invalid item %q", it.ID)
		}
		if _, dup := c.items[it.ID]; dup {
			return nil, fmt.Errorf("content: duplicate item %q", it.ID)
		}
		c.items[it.ID] = it
		c.itemOrder = append(c.itemOrder, it.ID)
	}
	sort.Strings(c.itemOrder)
	return c, nil
}

func readYAML(dir, name string, out interface{}) error {
	var (
		b   []byte
		err error
	)
	if dir != "" {
		b, err = os.ReadFile(filepath.Join(filepath.Clean(dir), name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("content: read %s: %w", name, err)
		}
	}
	if b == nil {
		b, err = defaults.ReadFile("data/" + name)
		if err != nil {
			return fmt.Errorf("content: embedded %s: %w", name, err)
		}
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("content: parse %s: %w", name, err)
	}
	return nil
}

// Enemy returns the template for id
func (c *Catalog) Enemy(id string) (combat.Enemy, error) {
	e, ok := c.enemies[id]
	if !ok {
		return combat.Enemy{}, fmt.Errorf("%w: %q", ErrUnknownEnemy, id)
	}
	return e, nil
}

// Enemies returns all enemy templates in file order
func (c *Catalog) Enemies() []combat.Enemy {
	out := make([]combat.Enemy, 0, len(c.enemyOrder))
	for _, id := range c.enemyOrder {
		out = append(out, c.enemies[id])
	}
	return out
}

// Item returns the item for id
func (c *Catalog) Item(id string) (Item, error) {
	it, ok := c.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %q", ErrUnknownItem, id)
	}
	return it, nil
}

// Items returns all items sorted by id
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.itemOrder))
	for _, id := range c.itemOrder {
		out = append(out, c.items[id])
	}
	return out
}

// Words returns a copy of the full vocabulary
func (c *Catalog) Words() []Word {
	return append([]Word(nil), c.words...)
}

// WordsByID resolves ids to words, skipping unknown ids
func (c *Catalog) WordsByID(ids []string) []Word {
	out := make([]Word, 0, len(ids))
	for _, id := range ids {
		if i, ok := c.wordIndex[id]; ok {
			out = append(out, c.words[i])
		}
	}
	return out
}
