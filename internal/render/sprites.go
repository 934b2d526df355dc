package render

import (
	"errors"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // sprite strips may be WebP
)

// DefaultMaxSprites bounds the decoded sprite cache
const DefaultMaxSprites = 64

var spriteExts = []string{".png", ".webp"}

// SpriteCache loads sprite strips from a directory and keeps them decoded
// with LRU eviction. A strip is a row of square frames.
type SpriteCache struct {
	dir     string
	maxSize int
	log     *zap.Logger

	mu      sync.Mutex
	images  map[string]image.Image
	order   []string // LRU order (oldest first)
	missing map[string]bool
}

// NewSpriteCache creates a cache over dir. An empty dir never finds anything.
func NewSpriteCache(dir string, maxSize int, logger *zap.Logger) *SpriteCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSprites
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpriteCache{
		dir:     dir,
		maxSize: maxSize,
		log:     logger,
		images:  make(map[string]image.Image),
		missing: make(map[string]bool),
	}
}

// Frame returns frame n of the strip named key, or nil when the strip is
// unavailable. Frames wrap around the strip length.
func (c *SpriteCache) Frame(key string, n int) image.Image {
	strip := c.get(key)
	if strip == nil {
		return nil
	}
	b := strip.Bounds()
	size := b.Dy()
	if size <= 0 {
		return nil
	}
	count := b.Dx() / size
	if count <= 1 {
		return strip
	}
	if n < 0 {
		n = -n
	}
	x := b.Min.X + (n%count)*size
	return imaging.Crop(strip, image.Rect(x, b.Min.Y, x+size, b.Min.Y+size))
}

// Size returns the number of decoded strips
func (c *SpriteCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

func (c *SpriteCache) get(key string) image.Image {
	if c.dir == "" || key == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if img, ok := c.images[key]; ok {
		c.touch(key)
		return img
	}
	if c.missing[key] {
		return nil
	}

	img, err := c.load(key)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("sprite decode failed", zap.String("sprite", key), zap.Error(err))
		}
		c.missing[key] = true
		return nil
	}

	if len(c.images) >= c.maxSize {
		c.evict()
	}
	c.images[key] = img
	c.order = append(c.order, key)
	return img
}

func (c *SpriteCache) load(key string) (image.Image, error) {
	// keys are content ids, never paths
	name := filepath.Base(key)
	if name != key {
		return nil, fs.ErrNotExist
	}
	for _, ext := range spriteExts {
		path := filepath.Join(c.dir, name+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return imaging.Open(path)
	}
	return nil, fs.ErrNotExist
}

func (c *SpriteCache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(append(c.order[:i:i], c.order[i+1:]...), key)
			return
		}
	}
}

// evict removes the least recently used strip
func (c *SpriteCache) evict() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.images, oldest)
}

// fitSprite scales a frame into the actor box. Enemies face the player.
func fitSprite(img image.Image, facingLeft bool) image.Image {
	out := imaging.Fit(img, int(actorSize), int(actorSize), imaging.NearestNeighbor)
	if facingLeft {
		out = imaging.FlipH(out)
	}
	return out
}
