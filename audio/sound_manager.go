package audio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/thaleshodan/proxange/events"
)

const (
	sampleRate = beep.SampleRate(48000)

	chimeLength = 220 * time.Millisecond
	buzzLength  = 150 * time.Millisecond
	tickLength  = 40 * time.Millisecond
)

// SoundManager plays short notification cues
// Every Play method is a no-op until Initialize succeeds, and while muted
type SoundManager struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	initialized bool
	muted       atomic.Bool
}

// NewSoundManager creates a new sound manager
func NewSoundManager() *SoundManager {
	return &SoundManager{
		mixer: &beep.Mixer{},
	}
}

// Initialize opens the speaker
// Failure is expected on hosts without an audio device; the dashboard runs silent
func (sm *SoundManager) Initialize() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	if err := speaker.Init(sampleRate, sampleRate.N(time.Millisecond*100)); err != nil {
		return err
	}

	speaker.Play(sm.mixer)
	sm.initialized = true
	return nil
}

// Available reports whether the speaker is open
func (sm *SoundManager) Available() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.initialized
}

// Cleanup stops all sounds
func (sm *SoundManager) Cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.initialized {
		return
	}

	// beep has no speaker close; clearing the mixer silences pending cues
	sm.mixer.Clear()
	sm.initialized = false
}

// ToggleMute flips the mute flag and returns the new value
func (sm *SoundManager) ToggleMute() bool {
	for {
		old := sm.muted.Load()
		if sm.muted.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Muted reports the mute flag
func (sm *SoundManager) Muted() bool {
	return sm.muted.Load()
}

// Cue plays the sound for a notification severity
func (sm *SoundManager) Cue(severity events.Severity) {
	if severity == events.SeverityError {
		sm.PlayBuzz()
		return
	}
	sm.PlayChime()
}

// PlayChime plays the rising two-tone rotation chime
func (sm *SoundManager) PlayChime() {
	sm.play(beep.Take(sampleRate.N(chimeLength), NewChimeGenerator(sampleRate, 660, 990)))
}

// PlayBuzz plays a short low-pitched error buzz
func (sm *SoundManager) PlayBuzz() {
	sm.play(beep.Take(sampleRate.N(buzzLength), NewBuzzGenerator(sampleRate, 120)))
}

// PlayTick plays the countdown click
func (sm *SoundManager) PlayTick() {
	sm.play(beep.Take(sampleRate.N(tickLength), NewTickGenerator(sampleRate)))
}

func (sm *SoundManager) play(s beep.Streamer) {
	if sm.muted.Load() {
		return
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if !sm.initialized {
		return
	}

	// Mixer is read by the speaker goroutine
	speaker.Lock()
	sm.mixer.Add(s)
	speaker.Unlock()
}

// ChimeGenerator plays two sine tones back to back with a soft decay
type ChimeGenerator struct {
	sr     beep.SampleRate
	first  float64
	second float64
	split  int
	pos    int
}

// NewChimeGenerator creates a chime switching from first to second halfway through chimeLength
func NewChimeGenerator(sr beep.SampleRate, first, second float64) *ChimeGenerator {
	return &ChimeGenerator{
		sr:     sr,
		first:  first,
		second: second,
		split:  sr.N(chimeLength / 2),
	}
}

func (g *ChimeGenerator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		t := float64(g.pos) / float64(g.sr)

		freq := g.first
		local := g.pos
		if g.pos >= g.split {
			freq = g.second
			local = g.pos - g.split
		}

		// Per-tone exponential decay
		envelope := math.Exp(-float64(local) / float64(g.sr) * 12)
		sample := 0.2 * envelope * math.Sin(2*math.Pi*freq*t)

		samples[i][0] = sample
		samples[i][1] = sample
		g.pos++
	}
	return len(samples), true
}

func (g *ChimeGenerator) Err() error {
	return nil
}

// BuzzGenerator generates a low-pitch buzz sound
type BuzzGenerator struct {
	sr   beep.SampleRate
	freq float64
	pos  int
}

// NewBuzzGenerator creates a buzz sound generator
func NewBuzzGenerator(sr beep.SampleRate, freq float64) *BuzzGenerator {
	return &BuzzGenerator{
		sr:   sr,
		freq: freq,
	}
}

func (g *BuzzGenerator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		t := float64(g.pos) / float64(g.sr)

		// Fundamental plus two harmonics
		sample := 0.3*math.Sin(2*math.Pi*g.freq*t) +
			0.15*math.Sin(2*math.Pi*g.freq*2*t) +
			0.075*math.Sin(2*math.Pi*g.freq*3*t)

		// 20ms fade in
		envelope := math.Min(t/0.02, 1.0)
		sample *= envelope * 0.2

		samples[i][0] = sample
		samples[i][1] = sample
		g.pos++
	}
	return len(samples), true
}

func (g *BuzzGenerator) Err() error {
	return nil
}

// TickGenerator is a short high click
type TickGenerator struct {
	sr  beep.SampleRate
	pos int
}

// NewTickGenerator creates a click generator
func NewTickGenerator(sr beep.SampleRate) *TickGenerator {
	return &TickGenerator{sr: sr}
}

func (g *TickGenerator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		t := float64(g.pos) / float64(g.sr)
		sample := 0.1 * math.Exp(-t*120) * math.Sin(2*math.Pi*2000*t)

		samples[i][0] = sample
		samples[i][1] = sample
		g.pos++
	}
	return len(samples), true
}

func (g *TickGenerator) Err() error {
	return nil
}
