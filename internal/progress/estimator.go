// Package progress produces a user-visible completion percentage for
// operations that expose no native progress signal. A timer drives a
// simulated ramp capped below 100; real transport progress, when available,
// is blended in by taking the greater value. Only a confirmed completion
// publishes 100.
package progress

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Operation kinds reported through Update.Kind.
const (
	KindUpload       = "upload"
	KindBuildContext = "build_context"
	KindEvaluate     = "evaluate"
)

// Tuning constants for the simulated ramp. They are exported so the values
// are visible configuration rather than magic numbers at call sites.
const (
	DefaultTickInterval = 200 * time.Millisecond
	DefaultIncrementMin = 2.0
	DefaultIncrementMax = 7.0
	DefaultCeilingMin   = 85
	DefaultCeilingMax   = 95
	DefaultGraceDelay   = 1500 * time.Millisecond
)

// Update is one published progress state. Active is false when the
// operation finished and the display should be cleared.
type Update struct {
	Kind    string
	Label   string
	Target  string
	Percent int
	Active  bool
}

// Config tunes the estimator. Zero fields fall back to the defaults above.
type Config struct {
	TickInterval time.Duration
	IncrementMin float64
	IncrementMax float64
	CeilingMin   int
	CeilingMax   int
	GraceDelay   time.Duration
	Rand         *rand.Rand
}

func (c Config) normalized() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.IncrementMax <= 0 {
		c.IncrementMin = DefaultIncrementMin
		c.IncrementMax = DefaultIncrementMax
	}
	if c.CeilingMin <= 0 || c.CeilingMax < c.CeilingMin {
		c.CeilingMin = DefaultCeilingMin
		c.CeilingMax = DefaultCeilingMax
	}
	if c.GraceDelay <= 0 {
		c.GraceDelay = DefaultGraceDelay
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// Estimator tracks at most one operation at a time. Starting a new
// operation supersedes whatever came before it.
type Estimator struct {
	mu       sync.Mutex
	pubMu    sync.Mutex
	current  atomic.Pointer[Update]
	cfg      Config
	logger   zerolog.Logger
	onUpdate func(Update)

	gen       int
	kind      string
	label     string
	target    string
	ceiling   int
	simulated float64
	percent   int
	active    bool
	stop      chan struct{}
}

// New creates an estimator publishing every change through onUpdate. The
// callback runs without the state lock held and may re-enter Current.
func New(cfg Config, onUpdate func(Update), logger zerolog.Logger) *Estimator {
	if onUpdate == nil {
		onUpdate = func(Update) {}
	}
	return &Estimator{
		cfg:      cfg.normalized(),
		onUpdate: onUpdate,
		logger:   logger.With().Str("component", "progress").Logger(),
	}
}

// Current returns the latest published state. It never blocks on the
// estimator's state lock, so update callbacks may call it freely.
func (e *Estimator) Current() Update {
	if p := e.current.Load(); p != nil {
		return *p
	}
	return Update{}
}

func (e *Estimator) updateLocked() Update {
	return Update{Kind: e.kind, Label: e.label, Target: e.target, Percent: e.percent, Active: e.active}
}

// publishLocked releases the state lock and delivers upd. pubMu is taken
// before mu is released so concurrent producers deliver their updates in
// the same order the state changes happened; without this a slow tick
// could publish after Complete and appear to move the value backwards.
func (e *Estimator) publishLocked(upd Update) {
	e.pubMu.Lock()
	e.mu.Unlock()
	e.current.Store(&upd)
	e.onUpdate(upd)
	e.pubMu.Unlock()
}

// Start resets the percentage to zero and begins the simulated ramp for one
// operation. The ramp's ceiling is drawn per operation so repeated runs do
// not stall at an identical value.
func (e *Estimator) Start(kind, label, target string) {
	e.mu.Lock()
	e.cancelLocked()
	e.gen++
	gen := e.gen
	e.kind, e.label, e.target = kind, label, target
	e.simulated = 0
	e.percent = 0
	e.active = true
	e.ceiling = e.cfg.CeilingMin + e.cfg.Rand.Intn(e.cfg.CeilingMax-e.cfg.CeilingMin+1)
	stop := make(chan struct{})
	e.stop = stop
	upd := e.updateLocked()
	e.publishLocked(upd)

	e.logger.Debug().Str("kind", kind).Str("target", target).Msg("progress started")
	go e.run(gen, stop)
}

func (e *Estimator) run(gen int, stop chan struct{}) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !e.tick(gen) {
				return
			}
		}
	}
}

func (e *Estimator) tick(gen int) bool {
	e.mu.Lock()
	if gen != e.gen || !e.active {
		e.mu.Unlock()
		return false
	}
	inc := e.cfg.IncrementMin + e.cfg.Rand.Float64()*(e.cfg.IncrementMax-e.cfg.IncrementMin)
	e.simulated = math.Min(e.simulated+inc, float64(e.ceiling))
	upd, changed := e.mergeLocked()
	if !changed {
		e.mu.Unlock()
		return true
	}
	e.publishLocked(upd)
	return true
}

// Observe feeds real transport progress (bytes sent of a known total). The
// fraction is scaled onto the operation ceiling so that even a fully sent
// request body stays below 100 until the server confirms completion.
func (e *Estimator) Observe(sent, total int64) {
	e.mu.Lock()
	if !e.active || total <= 0 {
		e.mu.Unlock()
		return
	}
	scaled := math.Min(float64(sent)/float64(total), 1) * float64(e.ceiling)
	e.simulated = math.Max(e.simulated, scaled)
	upd, changed := e.mergeLocked()
	if !changed {
		e.mu.Unlock()
		return
	}
	e.publishLocked(upd)
}

// mergeLocked folds the simulated value into the published percent. The
// published value only ever grows; out-of-order producers cannot lower it.
func (e *Estimator) mergeLocked() (Update, bool) {
	next := int(e.simulated)
	if next <= e.percent {
		return Update{}, false
	}
	e.percent = next
	return e.updateLocked(), true
}

// Complete stops the ramp and publishes 100. The final state stays visible
// for the grace delay, then clears unless a new operation started meanwhile.
func (e *Estimator) Complete() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.cancelLocked()
	gen := e.gen
	e.active = false
	e.percent = 100
	upd := e.updateLocked()
	upd.Active = true
	kind := upd.Kind
	e.publishLocked(upd)

	e.logger.Debug().Str("kind", kind).Msg("progress complete")

	time.AfterFunc(e.cfg.GraceDelay, func() {
		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		e.clearLocked()
		e.publishLocked(Update{})
	})
}

// Fail stops the ramp and clears the display immediately.
func (e *Estimator) Fail() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.cancelLocked()
	kind := e.kind
	e.clearLocked()
	e.publishLocked(Update{})

	e.logger.Debug().Str("kind", kind).Msg("progress failed")
}

func (e *Estimator) clearLocked() {
	e.kind, e.label, e.target = "", "", ""
	e.simulated = 0
	e.percent = 0
	e.active = false
}

func (e *Estimator) cancelLocked() {
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}
