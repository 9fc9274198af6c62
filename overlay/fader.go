// Package overlay converts the binary posture signal into a smoothly fading
// alpha value for the on screen reminder
package overlay

import (
	"fmt"
	"sync"
)

// Params defines the fade behaviour of the overlay
type Params struct {
	// MaxAlpha is the opacity (0-255) of the overlay when fully shown
	MaxAlpha uint8 `yaml:"max_alpha"`
	// FadeSpeed is the amount alpha changes per Update call
	FadeSpeed uint8 `yaml:"fade_speed"`
}

// DefaultParams returns the default overlay settings featuring:
// - Max Alpha: 180
// - Fade Speed: 15
func DefaultParams() Params {
	return Params{
		MaxAlpha:  180,
		FadeSpeed: 15,
	}
}

// Validate checks the parameters are usable
func (p Params) Validate() error {
	if p.FadeSpeed == 0 {
		return fmt.Errorf("overlay fade_speed must be > 0")
	}

	return nil
}

// Fader steps the current alpha towards a target alpha once per frame so the
// overlay fades in and out rather than snapping
type Fader struct {
	params  Params
	current uint8
	target  uint8
	sync.Mutex
}

// NewFader returns a Fader that starts fully transparent
func NewFader(p Params) *Fader {
	return &Fader{
		params: p,
	}
}

// SetVisible sets the fade target to fully shown or hidden
func (f *Fader) SetVisible(visible bool) {
	f.Lock()
	defer f.Unlock()

	if visible {
		f.target = f.params.MaxAlpha
	} else {
		f.target = 0
	}
}

// SetIntensity sets the fade target proportionally to intensity in 0..1
func (f *Fader) SetIntensity(intensity float64) {
	f.Lock()
	defer f.Unlock()

	if intensity < 0 {
		intensity = 0
	} else if intensity > 1 {
		intensity = 1
	}

	f.target = uint8(intensity*float64(f.params.MaxAlpha) + 0.5)
}

// Update moves the current alpha one step towards the target and returns it
func (f *Fader) Update() uint8 {
	f.Lock()
	defer f.Unlock()

	step := int(f.params.FadeSpeed)
	cur := int(f.current)
	tgt := int(f.target)

	if cur < tgt {
		cur = min(cur+step, tgt)
	} else if cur > tgt {
		cur = max(cur-step, tgt)
	}

	f.current = uint8(cur)
	return f.current
}

// Alpha returns the current alpha without stepping
func (f *Fader) Alpha() uint8 {
	f.Lock()
	defer f.Unlock()

	return f.current
}

// Visible reports if the overlay is at least partly shown
func (f *Fader) Visible() bool {
	return f.Alpha() > 0
}
