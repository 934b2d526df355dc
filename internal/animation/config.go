package animation

import "time"

// Config holds timeline durations. Durations are converted to ticks at the
// configured tick rate; anything shorter than one tick lasts one tick.
type Config struct {
	TickRate int // ticks per second

	IntroHold time.Duration // pause before the first action menu

	// Attack timelines
	Slide         time.Duration // slide in and slide back
	SlideDistance float64       // pixels
	SlashFrames   int
	SlashFrame    time.Duration
	ImpactFrame   int // slash frame index that lands the hit
	Flash         time.Duration
	Shake         time.Duration
	Popup         time.Duration // damage number lifetime

	Idle time.Duration // breathing frame interval

	// Result timelines
	CollapseFrames int
	CollapseFrame  time.Duration
	Jump           time.Duration   // victory jump frame interval
	TrueFormDelay  time.Duration   // pause between collapse and flicker
	Flicker        []time.Duration // shrinking intervals, ends on the true form
}

// DefaultConfig returns the standard timings at tickRate
func DefaultConfig(tickRate int) Config {
	if tickRate <= 0 {
		tickRate = 30
	}
	return Config{
		TickRate:       tickRate,
		IntroHold:      2 * time.Second,
		Slide:          250 * time.Millisecond,
		SlideDistance:  140,
		SlashFrames:    4,
		SlashFrame:     80 * time.Millisecond,
		ImpactFrame:    2,
		Flash:          120 * time.Millisecond,
		Shake:          300 * time.Millisecond,
		Popup:          900 * time.Millisecond,
		Idle:           500 * time.Millisecond,
		CollapseFrames: 4,
		CollapseFrame:  150 * time.Millisecond,
		Jump:           300 * time.Millisecond,
		TrueFormDelay:  600 * time.Millisecond,
		Flicker: []time.Duration{
			400 * time.Millisecond,
			300 * time.Millisecond,
			200 * time.Millisecond,
			150 * time.Millisecond,
			100 * time.Millisecond,
			60 * time.Millisecond,
		},
	}
}

// Ticks converts d to ticks, at least one
func (c Config) Ticks(d time.Duration) int {
	t := int(d.Seconds() * float64(c.TickRate))
	if t < 1 {
		t = 1
	}
	return t
}
