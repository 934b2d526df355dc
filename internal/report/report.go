// Package report builds a printable PDF battle report: the combatants, the
// combat log of the current battle and the player's profile.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/encounter"
)

const (
	pageW     = 595
	margin    = 40
	titleSize = 18
	headSize  = 12
	fontSize  = 10
	lineH     = 14
	barW      = 200.0
	barH      = 10.0
)

// Options tunes the report
type Options struct {
	// FontPath is a UTF-8 TTF used for all text. Without it the core
	// Helvetica font is used and characters outside Latin-1 print as '?'.
	FontPath string
	// Frame is an optional PNG of the battle scene placed under the title.
	Frame []byte
	Title string
}

type writer struct {
	pdf     *gofpdf.Fpdf
	family  string
	unicode bool
	tr      func(string) string
}

// Generate returns PDF bytes for the encounter view v
func Generate(v encounter.View, opts Options) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)

	w := &writer{pdf: pdf, family: "Helvetica"}
	if opts.FontPath != "" {
		pdf.AddUTF8Font("body", "", opts.FontPath)
		pdf.AddUTF8Font("body", "B", opts.FontPath)
		w.family = "body"
		w.unicode = true
	} else {
		w.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("report: font: %w", err)
	}

	pdf.AddPage()
	title := opts.Title
	if title == "" {
		title = "Battle Report"
	}
	w.font("B", titleSize)
	pdf.SetTextColor(30, 30, 60)
	pdf.CellFormat(0, 24, w.text(title), "", 1, "L", false, 0, "")

	if len(opts.Frame) > 0 {
		w.frame(opts.Frame)
	}

	w.combatants(v.Combat)
	w.log(v.Combat.Log)
	w.profile(v.Profile)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("report: output: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *writer) font(style string, size float64) {
	w.pdf.SetFont(w.family, style, size)
}

// text prepares s for the current font
func (w *writer) text(s string) string {
	if w.unicode {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r > 0xff {
			r = '?'
		}
		b.WriteRune(r)
	}
	return w.tr(b.String())
}

func (w *writer) heading(s string) {
	w.pdf.Ln(8)
	w.font("B", headSize)
	w.pdf.SetTextColor(30, 30, 60)
	w.pdf.CellFormat(0, 18, w.text(s), "B", 1, "L", false, 0, "")
	w.pdf.Ln(4)
	w.font("", fontSize)
	w.pdf.SetTextColor(20, 20, 20)
}

func (w *writer) frame(png []byte) {
	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	info := w.pdf.RegisterImageOptionsReader("frame", opt, bytes.NewReader(png))
	if info == nil || w.pdf.Err() {
		return
	}
	width := float64(pageW - 2*margin)
	height := width * info.Height() / info.Width()
	w.pdf.ImageOptions("frame", margin, w.pdf.GetY()+4, width, height, false, opt, 0, "")
	w.pdf.SetY(w.pdf.GetY() + height + 8)
}

func (w *writer) combatants(snap combat.Snapshot) {
	w.heading("Battle")
	if !snap.IsActive || snap.Enemy == nil {
		w.pdf.CellFormat(0, lineH, w.text("No battle in progress."), "", 1, "L", false, 0, "")
		return
	}

	kind := "Story battle"
	if snap.IsRandomEncounter {
		kind = "Random encounter"
	}
	name := snap.Enemy.Name
	if snap.Enemy.NameJa != "" && w.unicode {
		name += " (" + snap.Enemy.NameJa + ")"
	}
	w.row("Enemy", name)
	w.row("Type", kind)
	w.row("Round", fmt.Sprintf("%d", snap.CurrentRound))
	w.row("Phase", string(snap.Phase))
	if snap.LastTier != "" {
		w.row("Last result", snap.LastTier.Label())
	}
	w.bar("You", snap.PlayerHP, snap.PlayerMaxHP)
	w.bar(snap.Enemy.Name, snap.EnemyHP, snap.EnemyMaxHP)
}

func (w *writer) row(label, value string) {
	w.font("B", fontSize)
	w.pdf.CellFormat(90, lineH, w.text(label), "", 0, "L", false, 0, "")
	w.font("", fontSize)
	w.pdf.CellFormat(0, lineH, w.text(value), "", 1, "L", false, 0, "")
}

func (w *writer) bar(label string, hp, maxHP int) {
	pct := 0.0
	if maxHP > 0 {
		pct = float64(hp) / float64(maxHP)
	}
	w.font("B", fontSize)
	w.pdf.CellFormat(90, lineH, w.text(label), "", 0, "L", false, 0, "")

	x, y := w.pdf.GetX(), w.pdf.GetY()+2
	w.pdf.SetFillColor(220, 220, 220)
	w.pdf.Rect(x, y, barW, barH, "F")
	switch {
	case pct > 0.5:
		w.pdf.SetFillColor(60, 180, 75)
	case pct > 0.25:
		w.pdf.SetFillColor(245, 150, 20)
	default:
		w.pdf.SetFillColor(220, 50, 50)
	}
	w.pdf.Rect(x, y, barW*pct, barH, "F")

	w.font("", fontSize)
	w.pdf.SetX(x + barW + 8)
	w.pdf.CellFormat(0, lineH, fmt.Sprintf("%d / %d HP", hp, maxHP), "", 1, "L", false, 0, "")
}

var logColors = map[combat.LogKind][3]int{
	combat.LogSystem:   {60, 60, 60},
	combat.LogPlayer:   {30, 90, 200},
	combat.LogEnemy:    {190, 40, 40},
	combat.LogDialogue: {120, 60, 150},
	combat.LogItem:     {30, 140, 70},
}

func (w *writer) log(entries []combat.LogEntry) {
	w.heading("Combat log")
	if len(entries) == 0 {
		w.pdf.CellFormat(0, lineH, w.text("(empty)"), "", 1, "L", false, 0, "")
		return
	}
	for _, e := range entries {
		c, ok := logColors[e.Kind]
		if !ok {
			c = logColors[combat.LogSystem]
		}
		w.pdf.SetTextColor(c[0], c[1], c[2])
		w.pdf.CellFormat(50, lineH, fmt.Sprintf("R%d", e.Round), "", 0, "L", false, 0, "")
		w.pdf.MultiCell(0, lineH, w.text(e.Text), "", "L", false)
	}
	w.pdf.SetTextColor(20, 20, 20)
}

func (w *writer) profile(p encounter.Profile) {
	w.heading("Adventurer")
	w.row("Level", fmt.Sprintf("%d", p.Level))
	w.row("XP", fmt.Sprintf("%d", p.XP))
	w.row("Yen", fmt.Sprintf("%d", p.Yen))
	w.row("Words seen", fmt.Sprintf("%d", len(p.Learned)))

	ids := make([]string, 0, len(p.Items))
	for id, n := range p.Items {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	items := "none"
	if len(ids) > 0 {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprintf("%s x%d", id, p.Items[id])
		}
		items = strings.Join(parts, ", ")
	}
	w.row("Items", items)

	flags := make([]string, 0, len(p.Flags))
	for f, on := range p.Flags {
		if on {
			flags = append(flags, strings.TrimPrefix(f, encounter.BattleFlag("")))
		}
	}
	if len(flags) > 0 {
		sort.Strings(flags)
		w.row("Defeated", strings.Join(flags, ", "))
	}
}
