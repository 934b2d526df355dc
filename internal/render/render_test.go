package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotoba-quest/internal/animation"
	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/config"
	"kotoba-quest/internal/encounter"
)

func battleView() encounter.View {
	return encounter.View{
		SessionID: "s1",
		Combat: combat.Snapshot{
			IsActive:     true,
			Enemy:        &combat.Enemy{ID: "kappa", Name: "Kappa", HP: 60},
			EnemyHP:      20,
			EnemyMaxHP:   60,
			PlayerHP:     90,
			PlayerMaxHP:  100,
			Phase:        combat.PhaseActionSelect,
			CurrentRound: 2,
		},
		Anim: animation.State{
			Player: animation.Actor{Sprite: "hero_idle", Pose: animation.PoseIdle},
			Enemy:  animation.Actor{Sprite: "kappa_hurt", Pose: animation.PoseHurt},
			Popups: []animation.Popup{
				{Target: animation.TargetEnemy, Amount: 38, Weak: true},
				{Target: animation.TargetPlayer, Amount: 30, Heal: true},
			},
		},
		Menu: &encounter.MenuView{
			Name: encounter.MenuAction,
			Options: []encounter.MenuOption{
				{ID: "quiz", Label: "Quiz", WeakPoint: true},
				{ID: "items", Label: "Items", Disabled: true},
			},
		},
	}
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func brightness(c color.Color) uint32 {
	r, g, b, _ := c.RGBA()
	return r + g + b
}

func TestRendererPNG(t *testing.T) {
	r, err := New(config.DefaultRender(), nil)
	require.NoError(t, err)

	data, err := r.PNG(battleView())
	require.NoError(t, err)
	img := decode(t, data)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 360, img.Bounds().Dy())
}

func TestRendererIdleFrame(t *testing.T) {
	r, err := New(config.RenderConfig{Width: 200, Height: 100}, nil)
	require.NoError(t, err)

	data, err := r.PNG(encounter.View{})
	require.NoError(t, err)
	assert.Equal(t, 200, decode(t, data).Bounds().Dx())
}

func TestRendererFlashBrightens(t *testing.T) {
	r, err := New(config.DefaultRender(), nil)
	require.NoError(t, err)

	v := battleView()
	plain := r.Frame(v)
	v.Anim.Flash = true
	flashed := r.Frame(v)

	// sky corner away from the HUD
	assert.Greater(t, brightness(flashed.At(320, 150)), brightness(plain.At(320, 150)))

	pr, pg, pb, _ := plain.At(320, 150).RGBA()
	fr, fg, fb, _ := flashed.At(320, 150).RGBA()
	assert.Greater(t, fr, pr)
	assert.Greater(t, fg, pg)
	assert.Greater(t, fb, pb)
}

func TestRendererHurtTintLightensBody(t *testing.T) {
	r, err := New(config.DefaultRender(), nil)
	require.NoError(t, err)

	v := battleView()
	v.Anim.Popups = nil
	v.Menu = nil
	hurt := r.Frame(v)
	v.Anim.Enemy = animation.Actor{Sprite: "kappa_idle", Pose: animation.PoseIdle}
	idle := r.Frame(v)

	// middle of the enemy placeholder body
	assert.Greater(t, brightness(hurt.At(470, 220)), brightness(idle.At(470, 220)))
	hr, _, _, _ := hurt.At(470, 220).RGBA()
	ir, _, _, _ := idle.At(470, 220).RGBA()
	assert.GreaterOrEqual(t, hr, ir)
}

func TestOverlayColorsAreValid(t *testing.T) {
	for _, c := range []color.Color{colorFlash, colorStar, colorHurtTint, colorPanel} {
		r, g, b, a := c.RGBA()
		assert.LessOrEqual(t, r, a)
		assert.LessOrEqual(t, g, a)
		assert.LessOrEqual(t, b, a)
	}
}

func TestRendererRejectsBadConfig(t *testing.T) {
	_, err := New(config.RenderConfig{Width: 0, Height: 100}, nil)
	assert.Error(t, err)

	_, err = New(config.RenderConfig{Width: 10, Height: 10, FontPath: "/nonexistent.ttf"}, nil)
	assert.Error(t, err)
}

func writeStrip(t *testing.T, dir, key string, frames int) {
	t.Helper()
	strip := imaging.New(16*frames, 16, color.Black)
	for i := 0; i < frames; i++ {
		shade := uint8(40 * (i + 1))
		frame := imaging.New(16, 16, color.NRGBA{shade, shade, shade, 255})
		strip = imaging.Paste(strip, frame, image.Pt(16*i, 0))
	}
	require.NoError(t, imaging.Save(strip, filepath.Join(dir, key+".png")))
}

func TestSpriteCacheFrames(t *testing.T) {
	dir := t.TempDir()
	writeStrip(t, dir, "hero_attack", 4)
	c := NewSpriteCache(dir, 4, nil)

	f0 := c.Frame("hero_attack", 0)
	require.NotNil(t, f0)
	assert.Equal(t, 16, f0.Bounds().Dx())

	f2 := c.Frame("hero_attack", 2)
	r, _, _, _ := f2.At(8, 8).RGBA()
	assert.Equal(t, uint32(120)*0x101, r)

	wrapped := c.Frame("hero_attack", 6)
	assert.Equal(t, f2.At(8, 8), wrapped.At(8, 8))
	assert.Equal(t, 1, c.Size())
}

func TestSpriteCacheMissingAndEviction(t *testing.T) {
	dir := t.TempDir()
	writeStrip(t, dir, "a", 1)
	writeStrip(t, dir, "b", 1)
	writeStrip(t, dir, "c", 1)
	c := NewSpriteCache(dir, 2, nil)

	assert.Nil(t, c.Frame("nope", 0))
	assert.Nil(t, c.Frame("../a", 0), "keys never escape the sprite dir")

	require.NotNil(t, c.Frame("a", 0))
	require.NotNil(t, c.Frame("b", 0))
	require.NotNil(t, c.Frame("a", 0))
	require.NotNil(t, c.Frame("c", 0))
	assert.Equal(t, 2, c.Size())

	c.mu.Lock()
	_, hasA := c.images["a"]
	_, hasB := c.images["b"]
	c.mu.Unlock()
	assert.True(t, hasA, "recently used strip is kept")
	assert.False(t, hasB)
}

func TestSpriteCacheWithoutDir(t *testing.T) {
	c := NewSpriteCache("", 0, nil)
	assert.Nil(t, c.Frame("hero_idle", 0))
}
