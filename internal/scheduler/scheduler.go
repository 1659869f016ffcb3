// Package scheduler drives rule evaluation: a polling loop that wakes
// once per minute, evaluates every event in the live rule set and
// executes matched actions, with atomic hot reload of the rule set.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tellhaus/masd/internal/device"
	"github.com/tellhaus/masd/internal/rules"
	"github.com/tellhaus/masd/internal/sun"
)

// solarDay caches sunrise/sunset for one calendar date.
type solarDay struct {
	date  string // "2006-01-02"
	times sun.Times
}

// Scheduler owns the live rule-set generation and the per-day solar
// cache. One mutex guards both as a unit: the tick holds it for an
// entire evaluation pass, and ReplaceRuleSet holds it for the swap, so
// a tick observes a generation entirely before or entirely after any
// reload, never a mix.
type Scheduler struct {
	ctrl device.Controller

	mu    sync.Mutex
	rs    *rules.RuleSet
	solar *solarDay

	now func() time.Time // clock source, replaceable in tests
}

// New creates a scheduler with an initial rule-set generation.
func New(ctrl device.Controller, rs *rules.RuleSet) *Scheduler {
	return &Scheduler{
		ctrl: ctrl,
		rs:   rs,
		now:  time.Now,
	}
}

// Run starts the polling loop. It blocks until the context is
// cancelled; cancellation is cooperative and never interrupts an
// in-flight tick.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Str("generation", s.generationID()).Msg("Scheduler started")

	for {
		// Wake slightly past the next minute boundary so the loop
		// self-corrects for timer jitter instead of drifting. Minutes
		// missed while suspended are skipped, never replayed.
		timer := time.NewTimer(wakeDelay(s.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Scheduler stopping")
			return nil

		case <-timer.C:
			s.tick(s.now())
		}
	}
}

// wakeDelay returns the sleep until second 2 of the next minute.
func wakeDelay(now time.Time) time.Duration {
	return time.Duration(60-now.Second()+2) * time.Second
}

// tick runs one evaluation pass: refresh the solar cache if the day
// changed, evaluate every event in stored order, execute matches
// synchronously in rule order.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sunrise, sunset sun.Clock
	if s.rs.Location != nil {
		today := now.Format("2006-01-02")
		if s.solar == nil || s.solar.date != today {
			calc := sun.Sun{Lat: s.rs.Location.Lat, Lon: s.rs.Location.Lon}
			s.solar = &solarDay{date: today, times: calc.Times(now)}
			log.Debug().
				Str("date", today).
				Stringer("sunrise", s.solar.times.Sunrise).
				Stringer("sunset", s.solar.times.Sunset).
				Msg("Solar times recomputed")
		}
		sunrise = s.solar.times.Sunrise
		sunset = s.solar.times.Sunset
	}

	for i := range s.rs.Events {
		event := &s.rs.Events[i]
		if event.Matches(now, sunrise, sunset) {
			log.Info().
				Int("event", i).
				Ints("devices", event.Action.Devices).
				Msg("Event triggered")
			event.Action.Execute(s.ctrl)
		}
	}
}

// ReplaceRuleSet atomically swaps the live generation and invalidates
// the solar cache, since the location may have changed. Validation and
// parsing of the candidate happen before this call; the lock is held
// only for the swap.
func (s *Scheduler) ReplaceRuleSet(rs *rules.RuleSet) {
	s.mu.Lock()
	old := s.rs.ID
	s.rs = rs
	s.solar = nil
	s.mu.Unlock()

	log.Info().
		Str("old_generation", old).
		Str("new_generation", rs.ID).
		Int("events", len(rs.Events)).
		Msg("Rule set replaced")
}

// Snapshot describes the live generation for the web API.
type Snapshot struct {
	GenerationID string
	Events       int
	Groups       int
	Location     *sun.Coordinates
	SolarDate    string
	Sunrise      *sun.Clock
	Sunset       *sun.Clock
}

// Snapshot returns a consistent view of the scheduler state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		GenerationID: s.rs.ID,
		Events:       len(s.rs.Events),
		Groups:       s.rs.Groups.Len(),
		Location:     s.rs.Location,
	}
	if s.solar != nil {
		snap.SolarDate = s.solar.date
		sunrise, sunset := s.solar.times.Sunrise, s.solar.times.Sunset
		snap.Sunrise = &sunrise
		snap.Sunset = &sunset
	}
	return snap
}

func (s *Scheduler) generationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rs.ID
}
