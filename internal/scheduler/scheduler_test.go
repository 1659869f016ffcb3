package scheduler

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tellhaus/masd/internal/rules"
)

// fakeController records every command it receives.
type fakeController struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeController) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeController) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeController) DeviceIDs() []int          { return nil }
func (f *fakeController) Name(id int) string        { return "" }
func (f *fakeController) SupportsOnOff(id int) bool { return true }
func (f *fakeController) SupportsDim(id int) bool   { return true }
func (f *fakeController) LastOn(id int) bool        { return false }
func (f *fakeController) LastDimLevel(id int) int   { return 0 }

func (f *fakeController) TurnOn(ids []int) {
	for _, id := range ids {
		f.record("on:%d", id)
	}
}

func (f *fakeController) TurnOff(ids []int) {
	for _, id := range ids {
		f.record("off:%d", id)
	}
}

func (f *fakeController) Dim(ids []int, level int) {
	for _, id := range ids {
		f.record("dim:%d:%d", id, level)
	}
}

func parseRules(t *testing.T, input string) *rules.RuleSet {
	t.Helper()
	rs, err := rules.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return rs
}

func TestTickFiresFixedRule(t *testing.T) {
	rs := parseRules(t, "EVENT 00:01 Mon/Tue on(43)\n")
	ctrl := &fakeController{}
	s := New(ctrl, rs)

	// 2014-03-03 is a Monday.
	s.tick(time.Date(2014, 3, 3, 0, 1, 0, 0, time.Local))
	s.tick(time.Date(2014, 3, 4, 0, 1, 0, 0, time.Local)) // Tuesday
	s.tick(time.Date(2014, 3, 5, 0, 1, 0, 0, time.Local)) // Wednesday, masked out
	s.tick(time.Date(2014, 3, 3, 0, 2, 0, 0, time.Local)) // wrong minute

	got := ctrl.recorded()
	want := []string{"on:43", "on:43"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTickEvaluatesInRuleOrder(t *testing.T) {
	rs := parseRules(t, "EVENT 12:00 off(2)\nEVENT 12:00 on(1)\nEVENT 12:00 dim(3,128)\n")
	ctrl := &fakeController{}
	s := New(ctrl, rs)

	s.tick(time.Date(2014, 3, 3, 12, 0, 0, 0, time.Local))

	got := ctrl.recorded()
	want := []string{"off:2", "on:1", "dim:3:128"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q (actions must run in stored rule order)", i, got[i], want[i])
		}
	}
}

func TestSolarCachePerDay(t *testing.T) {
	rs := parseRules(t, "LAT_LONG 59.20 18.3\nEVENT Sunrise on(1)\n")
	s := New(&fakeController{}, rs)

	day1 := time.Date(2014, 6, 15, 3, 0, 0, 0, time.UTC)
	s.tick(day1)
	snap := s.Snapshot()
	if snap.SolarDate != "2014-06-15" {
		t.Fatalf("solar date = %q, want 2014-06-15", snap.SolarDate)
	}
	firstSunrise := *snap.Sunrise

	// Same day: cache must be reused, not recomputed differently.
	s.tick(day1.Add(4 * time.Hour))
	snap = s.Snapshot()
	if !snap.Sunrise.Equal(firstSunrise) {
		t.Errorf("sunrise changed within the same day: %v -> %v", firstSunrise, snap.Sunrise)
	}

	// Next day: cache must roll over.
	s.tick(day1.Add(24 * time.Hour))
	snap = s.Snapshot()
	if snap.SolarDate != "2014-06-16" {
		t.Errorf("solar date = %q, want 2014-06-16", snap.SolarDate)
	}
}

func TestReplaceRuleSetInvalidatesSolarCache(t *testing.T) {
	rs := parseRules(t, "LAT_LONG 59.20 18.3\nEVENT Sunrise on(1)\n")
	s := New(&fakeController{}, rs)

	s.tick(time.Date(2014, 6, 15, 3, 0, 0, 0, time.UTC))
	if s.Snapshot().Sunrise == nil {
		t.Fatal("expected solar cache after tick")
	}

	s.ReplaceRuleSet(parseRules(t, "LAT_LONG 40.0 -74.0\nEVENT Sunset off(1)\n"))
	snap := s.Snapshot()
	if snap.Sunrise != nil {
		t.Error("solar cache must be invalidated on reload")
	}
	if snap.Location == nil || snap.Location.Lat != 40.0 {
		t.Errorf("location = %+v, want the new generation's", snap.Location)
	}
}

func TestReplaceRuleSetChangesGeneration(t *testing.T) {
	rsA := parseRules(t, "EVENT 00:01 on(1)\n")
	rsB := parseRules(t, "EVENT 00:01 on(2)\n")
	ctrl := &fakeController{}
	s := New(ctrl, rsA)

	now := time.Date(2014, 3, 3, 0, 1, 0, 0, time.Local)
	s.tick(now)
	s.ReplaceRuleSet(rsB)
	s.tick(now)

	got := ctrl.recorded()
	want := []string{"on:1", "on:2"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if s.Snapshot().GenerationID != rsB.ID {
		t.Error("snapshot should report the new generation")
	}
}

// A tick must observe one generation for its whole evaluation pass:
// with generation A firing devices 1 then 2 and generation B firing 3
// then 4, every tick must produce a matched pair, never a mix.
func TestReloadAtomicity(t *testing.T) {
	makeA := func() *rules.RuleSet { return parseRules(t, "EVENT 00:01 on(1)\nEVENT 00:01 on(2)\n") }
	makeB := func() *rules.RuleSet { return parseRules(t, "EVENT 00:01 on(3)\nEVENT 00:01 on(4)\n") }

	ctrl := &fakeController{}
	s := New(ctrl, makeA())
	now := time.Date(2014, 3, 3, 0, 1, 0, 0, time.Local)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				s.ReplaceRuleSet(makeB())
			} else {
				s.ReplaceRuleSet(makeA())
			}
		}
	}()

	for i := 0; i < 100; i++ {
		s.tick(now)
	}
	<-done

	calls := ctrl.recorded()
	if len(calls)%2 != 0 {
		t.Fatalf("odd number of calls (%d): a tick saw a partial rule set", len(calls))
	}
	for i := 0; i < len(calls); i += 2 {
		pair := calls[i] + "," + calls[i+1]
		if pair != "on:1,on:2" && pair != "on:3,on:4" {
			t.Fatalf("tick %d fired mixed generations: %s", i/2, pair)
		}
	}
}

func TestWakeDelay(t *testing.T) {
	tests := []struct {
		second int
		want   time.Duration
	}{
		{0, 62 * time.Second},
		{30, 32 * time.Second},
		{59, 3 * time.Second},
	}
	for _, tc := range tests {
		now := time.Date(2014, 3, 3, 12, 0, tc.second, 0, time.Local)
		if got := wakeDelay(now); got != tc.want {
			t.Errorf("wakeDelay(:%02d) = %v, want %v", tc.second, got, tc.want)
		}
	}
}
