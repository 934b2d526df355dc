// Package render draws a still frame of an encounter as a PNG. Sprites are
// read from a directory of strips; anything missing is drawn as a shape so a
// frame can always be produced.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
	"golang.org/x/image/font"

	"kotoba-quest/internal/animation"
	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/config"
	"kotoba-quest/internal/encounter"
)

const (
	actorSize   = 120.0
	hpBarWidth  = 160.0
	hpBarHeight = 12.0
	shakePx     = 6.0
)

var (
	colorSky      = color.RGBA{24, 20, 44, 255}
	colorGround   = color.RGBA{46, 38, 30, 255}
	colorPlayer   = color.RGBA{70, 150, 255, 255}
	colorEnemy    = color.RGBA{220, 70, 90, 255}
	colorTrueForm = color.RGBA{255, 210, 90, 255}
	colorPanel    = color.RGBA{12, 12, 20, 220}
	colorText     = color.RGBA{240, 240, 245, 255}
	colorDim      = color.RGBA{150, 150, 170, 255}
	colorWeak     = color.RGBA{255, 200, 0, 255}
	colorDamage   = color.RGBA{255, 90, 90, 255}
	colorHeal     = color.RGBA{90, 230, 120, 255}

	// translucent overlays are non-premultiplied
	colorFlash    = color.NRGBA{255, 255, 255, 140}
	colorStar     = color.NRGBA{255, 255, 255, 90}
	colorHurtTint = color.NRGBA{255, 255, 255, 120}
)

// Renderer draws encounter views. It is safe for concurrent use.
type Renderer struct {
	width, height int
	sprites       *SpriteCache
	face          font.Face
	small         font.Face
}

// New creates a renderer from cfg. A font that fails to load is an error;
// an empty FontPath uses the built-in face.
func New(cfg config.RenderConfig, logger *zap.Logger) (*Renderer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("render: invalid frame size %dx%d", cfg.Width, cfg.Height)
	}
	r := &Renderer{
		width:   cfg.Width,
		height:  cfg.Height,
		sprites: NewSpriteCache(cfg.SpriteDir, DefaultMaxSprites, logger),
	}
	if cfg.FontPath != "" {
		face, err := gg.LoadFontFace(cfg.FontPath, 18)
		if err != nil {
			return nil, fmt.Errorf("render: load font: %w", err)
		}
		small, err := gg.LoadFontFace(cfg.FontPath, 12)
		if err != nil {
			return nil, fmt.Errorf("render: load font: %w", err)
		}
		r.face, r.small = face, small
	}
	return r, nil
}

// PNG encodes the frame for v
func (r *Renderer) PNG(v encounter.View) ([]byte, error) {
	dc := r.draw(v)
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("render: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Frame returns the frame for v as an image
func (r *Renderer) Frame(v encounter.View) image.Image {
	return r.draw(v).Image()
}

func (r *Renderer) draw(v encounter.View) *gg.Context {
	dc := gg.NewContext(r.width, r.height)
	r.drawBackground(dc)

	if !v.Combat.IsActive {
		r.useFace(dc, r.face)
		dc.SetColor(colorDim)
		dc.DrawStringAnchored("No battle in progress", float64(r.width)/2, float64(r.height)/2, 0.5, 0.5)
		return dc
	}

	dc.Push()
	if v.Anim.Shake {
		// alternate left and right every tick
		dx := shakePx
		if v.Anim.Tick%2 == 1 {
			dx = -shakePx
		}
		dc.Translate(dx, 0)
	}
	groundY := float64(r.height) * 0.72
	playerX := float64(r.width)*0.25 + v.Anim.Player.OffsetX
	enemyX := float64(r.width)*0.75 + v.Anim.Enemy.OffsetX

	r.drawActor(dc, v.Anim.Player, playerX, groundY, colorPlayer, false)
	enemyColor := colorEnemy
	if v.Anim.TrueForm {
		enemyColor = colorTrueForm
	}
	r.drawActor(dc, v.Anim.Enemy, enemyX, groundY, enemyColor, true)
	r.drawPopups(dc, v.Anim.Popups, playerX, enemyX, groundY-actorSize)
	dc.Pop()

	r.drawHUD(dc, v.Combat)
	if v.Menu != nil {
		r.drawMenu(dc, *v.Menu)
	}
	if v.Anim.Flash {
		dc.SetColor(colorFlash)
		dc.DrawRectangle(0, 0, float64(r.width), float64(r.height))
		dc.Fill()
	}
	return dc
}

func (r *Renderer) useFace(dc *gg.Context, face font.Face) {
	if face != nil {
		dc.SetFontFace(face)
	}
}

func (r *Renderer) drawBackground(dc *gg.Context) {
	w, h := float64(r.width), float64(r.height)
	dc.SetColor(colorSky)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	dc.SetColor(colorGround)
	dc.DrawRectangle(0, h*0.72, w, h*0.28)
	dc.Fill()

	dc.SetColor(colorStar)
	for i := 0; i < 24; i++ {
		x := float64((i * 67) % r.width)
		y := float64((i * 47) % int(h*0.6))
		dc.DrawCircle(x, y, 1)
		dc.Fill()
	}
}

// drawActor draws a sprite frame standing on groundY, or a placeholder body
func (r *Renderer) drawActor(dc *gg.Context, a animation.Actor, x, groundY float64, body color.Color, facingLeft bool) {
	if a.Sprite == "" {
		return
	}

	// Shadow
	dc.SetColor(color.RGBA{0, 0, 0, 100})
	dc.DrawEllipse(x, groundY, actorSize*0.4, 8)
	dc.Fill()

	top := groundY - actorSize
	if a.Pose == animation.PoseJump && a.Frame%2 == 1 {
		top -= 18
	}

	if img := r.sprites.Frame(a.Sprite, a.Frame); img != nil {
		dc.DrawImageAnchored(fitSprite(img, facingLeft), int(x), int(top+actorSize/2), 0.5, 0.5)
		return
	}

	switch a.Pose {
	case animation.PoseDown, animation.PoseCollapse:
		// lying flat
		dc.SetColor(body)
		dc.DrawRoundedRectangle(x-actorSize/2, groundY-actorSize/4, actorSize, actorSize/4, 6)
		dc.Fill()
	default:
		dc.SetColor(body)
		dc.DrawRoundedRectangle(x-actorSize/3, top, actorSize*2/3, actorSize, 10)
		dc.Fill()
		if a.Pose == animation.PoseHurt {
			dc.SetColor(colorHurtTint)
			dc.DrawRoundedRectangle(x-actorSize/3, top, actorSize*2/3, actorSize, 10)
			dc.Fill()
		}
	}

	r.useFace(dc, r.small)
	dc.SetColor(colorDim)
	dc.DrawStringAnchored(string(a.Pose), x, groundY+16, 0.5, 0.5)
}

func (r *Renderer) drawPopups(dc *gg.Context, popups []animation.Popup, playerX, enemyX, y float64) {
	r.useFace(dc, r.face)
	stack := map[string]float64{}
	for _, p := range popups {
		x := enemyX
		if p.Target == animation.TargetPlayer {
			x = playerX
		}
		py := y - stack[p.Target]
		stack[p.Target] += 22

		text := fmt.Sprintf("-%d", p.Amount)
		dc.SetColor(colorDamage)
		switch {
		case p.Miss:
			text = "MISS"
			dc.SetColor(colorDim)
		case p.Heal:
			text = fmt.Sprintf("+%d", p.Amount)
			dc.SetColor(colorHeal)
		case p.Weak:
			text += " WEAK!"
			dc.SetColor(colorWeak)
		}
		dc.DrawStringAnchored(text, x, py, 0.5, 0.5)
	}
}

func (r *Renderer) drawHUD(dc *gg.Context, snap combat.Snapshot) {
	w := float64(r.width)
	r.useFace(dc, r.face)

	dc.SetColor(colorText)
	dc.DrawString("You", 20, 28)
	drawHPBar(dc, 20, 36, snap.PlayerHP, snap.PlayerMaxHP)

	if snap.Enemy != nil {
		dc.SetColor(colorText)
		dc.DrawStringAnchored(snap.Enemy.Name, w-20, 22, 1, 0.5)
		drawHPBar(dc, w-20-hpBarWidth, 36, snap.EnemyHP, snap.EnemyMaxHP)
	}

	r.useFace(dc, r.small)
	dc.SetColor(colorDim)
	dc.DrawStringAnchored(fmt.Sprintf("Round %d  %s", snap.CurrentRound, snap.Phase), w/2, 22, 0.5, 0.5)
}

func drawHPBar(dc *gg.Context, x, y float64, hp, maxHP int) {
	dc.SetColor(color.RGBA{51, 51, 51, 255})
	dc.DrawRectangle(x, y, hpBarWidth, hpBarHeight)
	dc.Fill()

	pct := 0.0
	if maxHP > 0 {
		pct = float64(hp) / float64(maxHP)
	}
	if pct > 0.5 {
		dc.SetColor(color.RGBA{83, 255, 69, 255})
	} else if pct > 0.25 {
		dc.SetColor(color.RGBA{255, 149, 0, 255})
	} else {
		dc.SetColor(color.RGBA{255, 62, 62, 255})
	}
	dc.DrawRectangle(x, y, hpBarWidth*pct, hpBarHeight)
	dc.Fill()

	dc.SetColor(colorText)
	dc.DrawStringAnchored(fmt.Sprintf("%d/%d", hp, maxHP), x+hpBarWidth/2, y+hpBarHeight+10, 0.5, 0.5)
}

func (r *Renderer) drawMenu(dc *gg.Context, m encounter.MenuView) {
	const rowH = 22.0
	w, h := float64(r.width), float64(r.height)
	panelH := rowH*float64(len(m.Options)) + 16
	x, y := 16.0, h-panelH-12

	dc.SetColor(colorPanel)
	dc.DrawRoundedRectangle(x, y, w*0.45, panelH, 6)
	dc.Fill()

	r.useFace(dc, r.small)
	for i, opt := range m.Options {
		ty := y + 8 + rowH*float64(i) + rowH/2
		label := opt.Label
		if opt.Detail != "" {
			label += "  " + opt.Detail
		}
		switch {
		case opt.Disabled:
			dc.SetColor(colorDim)
		case opt.WeakPoint:
			dc.SetColor(colorWeak)
			label += "  (weak point)"
		default:
			dc.SetColor(colorText)
		}
		if i == m.Cursor {
			label = "> " + label
		} else {
			label = "  " + label
		}
		dc.DrawStringAnchored(label, x+12, ty, 0, 0.5)
	}
}
