// Package rules holds the automation rule model: events with a time
// trigger, weekday mask, optional daylight restriction and a device
// action, plus the rule-file parser that builds immutable rule sets.
package rules

import (
	"time"

	"github.com/google/uuid"

	"github.com/tellhaus/masd/internal/device"
	"github.com/tellhaus/masd/internal/sun"
)

// TriggerKind discriminates the time trigger variants.
type TriggerKind int

const (
	// TriggerFixed fires at a fixed wall-clock hour and minute.
	TriggerFixed TriggerKind = iota
	// TriggerSunrise fires relative to sunrise.
	TriggerSunrise
	// TriggerSunset fires relative to sunset.
	TriggerSunset
)

// MaxOffsetMinutes bounds solar trigger offsets to less than a day.
const MaxOffsetMinutes = 24 * 60

// Trigger is the time condition of an event: either a fixed clock time
// or a signed minute offset from sunrise or sunset.
type Trigger struct {
	Kind   TriggerKind
	Hour   int // fixed triggers only
	Minute int // fixed triggers only
	Offset int // solar triggers only, minutes, |Offset| < MaxOffsetMinutes
}

// Restriction gates a matched event on the daylight window.
type Restriction int

const (
	RestrictNone Restriction = iota
	RestrictSunUp
	RestrictSunDown
)

// Weekdays is a day-of-week mask indexed Monday = 0 through Sunday = 6.
type Weekdays [7]bool

// EveryDay returns a mask with all days enabled, the default when a
// rule specifies no weekdays.
func EveryDay() Weekdays {
	return Weekdays{true, true, true, true, true, true, true}
}

// Contains reports whether the mask includes the given weekday.
func (w Weekdays) Contains(d time.Weekday) bool {
	// time.Weekday counts Sunday = 0; the mask counts Monday = 0.
	return w[(int(d)+6)%7]
}

// ActionKind discriminates the device action variants.
type ActionKind int

const (
	ActionOn ActionKind = iota
	ActionOff
	ActionDim
)

// Action is the device command an event carries. Group references are
// expanded into Devices when the rule is built, so a later change to a
// group never affects an already-built rule.
type Action struct {
	Kind    ActionKind
	Level   int // dim actions only, 0-255
	Devices []int
}

// Execute dispatches the action to the device controller. Per-device
// failures are the controller's concern; the executor never retries
// and never aborts a multi-device action.
func (a Action) Execute(ctrl device.Controller) {
	switch a.Kind {
	case ActionOn:
		ctrl.TurnOn(a.Devices)
	case ActionOff:
		ctrl.TurnOff(a.Devices)
	case ActionDim:
		ctrl.Dim(a.Devices, a.Level)
	}
}

// Event is one automation rule. Immutable once built; its lifetime is
// one rule-set generation.
type Event struct {
	Trigger     Trigger
	Days        Weekdays
	Restriction Restriction
	Action      Action
}

// Group is a named, ordered set of device IDs. Device order is
// preserved and determines action application order.
type Group struct {
	ID      int
	Name    string
	Devices []int
}

// Groups is an ordered collection of groups, unique by ID.
type Groups struct {
	list []Group
}

// Add appends a group, refusing duplicates. Returns false if a group
// with the same ID already exists.
func (g *Groups) Add(grp Group) bool {
	for _, existing := range g.list {
		if existing.ID == grp.ID {
			return false
		}
	}
	g.list = append(g.list, grp)
	return true
}

// Get returns the group with the given ID.
func (g *Groups) Get(id int) (Group, bool) {
	for _, grp := range g.list {
		if grp.ID == id {
			return grp, true
		}
	}
	return Group{}, false
}

// All returns the groups in insertion order.
func (g *Groups) All() []Group {
	return g.list
}

// Len returns the number of groups.
func (g *Groups) Len() int {
	return len(g.list)
}

// RuleSet is one complete configuration generation: the atomic unit
// swapped during hot reload. Location is nil when no LAT_LONG is
// configured; the parser guarantees that solar triggers and daylight
// restrictions only appear when Location is set.
type RuleSet struct {
	ID       string
	Events   []Event
	Groups   Groups
	Location *sun.Coordinates
}

// NewRuleSet creates an empty generation with a fresh ID.
func NewRuleSet() *RuleSet {
	return &RuleSet{ID: uuid.NewString()}
}
