package rules

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/tellhaus/masd/internal/sun"
)

// The rule-file grammar, one statement per line:
//
//	# comment
//	LAT_LONG <latitude> <longitude>
//	GROUP <id|Gid> "<name>" <device> [<device> ...]
//	EVENT <HH:MM | Sunrise[±H.H] | Sunset[±H.H]> [Mon/Tue/...] [Sunup|Sundown] <function>
//
// where <function> is on(<dev|Gid>), off(<dev|Gid>) or dim(<dev|Gid>,<level>).
// Solar triggers and Sunup/Sundown restrictions require LAT_LONG to
// appear first. Weekdays are Mon Tue Wed Thu Fri Sat Sun.

// ParseFile reads and parses a rule file into a new rule-set generation.
func ParseFile(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer f.Close()

	rs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("syntax error in %s: %w", path, err)
	}
	return rs, nil
}

// Parse parses rule definitions into a new rule-set generation. Errors
// identify the offending line number.
func Parse(r io.Reader) (*RuleSet, error) {
	rs := NewRuleSet()

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}

		switch {
		case strings.HasPrefix(words[0], "#"):
			// comment

		case words[0] == "LAT_LONG":
			loc, err := parseLatLong(words)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			rs.Location = loc

		case words[0] == "GROUP":
			group, err := parseGroup(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if !rs.Groups.Add(group) {
				return nil, fmt.Errorf("line %d: group %d defined twice", lineNo, group.ID)
			}

		case words[0] == "EVENT":
			event, err := parseEvent(words, &rs.Groups, rs.Location != nil)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			rs.Events = append(rs.Events, event)

		default:
			return nil, fmt.Errorf("line %d: unknown command %q", lineNo, words[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return rs, nil
}

func parseLatLong(words []string) (*sun.Coordinates, error) {
	if len(words) != 3 {
		return nil, fmt.Errorf("LAT_LONG must have 2 arguments")
	}
	lat, err := strconv.ParseFloat(words[1], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q", words[1])
	}
	lon, err := strconv.ParseFloat(words[2], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q", words[2])
	}
	if lat < -90 || lat > 90 {
		return nil, fmt.Errorf("latitude must be -90 to 90")
	}
	if lon < -180 || lon > 180 {
		return nil, fmt.Errorf("longitude must be -180 to 180")
	}
	return &sun.Coordinates{Lat: lat, Lon: lon}, nil
}

func parseGroup(line string) (Group, error) {
	// The name is quoted and may contain spaces, so split on quotes first.
	parts := strings.Split(line, `"`)
	if len(parts) != 3 {
		return Group{}, fmt.Errorf(`group name missing, must be within ""`)
	}
	name := parts[1]

	idWords := strings.Fields(parts[0])
	if len(idWords) != 2 {
		return Group{}, fmt.Errorf("group id is missing")
	}
	id, err := parseGroupID(idWords[1])
	if err != nil {
		return Group{}, err
	}

	devWords := strings.Fields(parts[2])
	if len(devWords) == 0 {
		return Group{}, fmt.Errorf("at least one device id must be given")
	}
	devices := make([]int, 0, len(devWords))
	for _, w := range devWords {
		dev, err := strconv.Atoi(w)
		if err != nil {
			return Group{}, fmt.Errorf("invalid device id %q", w)
		}
		devices = append(devices, dev)
	}

	return Group{ID: id, Name: name, Devices: devices}, nil
}

// parseGroupID accepts both "12" and "G12".
func parseGroupID(w string) (int, error) {
	w = strings.TrimPrefix(w, "G")
	id, err := strconv.Atoi(w)
	if err != nil {
		return 0, fmt.Errorf("invalid group id %q", w)
	}
	return id, nil
}

var weekdayNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func parseEvent(words []string, groups *Groups, hasLocation bool) (Event, error) {
	if len(words) < 3 || len(words) > 5 {
		return Event{}, fmt.Errorf("EVENT must have 3 to 5 arguments")
	}

	trigger, err := parseTrigger(words[1], hasLocation)
	if err != nil {
		return Event{}, err
	}

	event := Event{Trigger: trigger, Days: EveryDay()}

	idx := 2
	if len(words) > 3 && words[2] != "Sunup" && words[2] != "Sundown" {
		days, err := parseWeekdays(words[2])
		if err != nil {
			return Event{}, err
		}
		event.Days = days
		idx = 3
	}

	if len(words) == idx+2 {
		switch words[idx] {
		case "Sunup":
			event.Restriction = RestrictSunUp
		case "Sundown":
			event.Restriction = RestrictSunDown
		default:
			return Event{}, fmt.Errorf("invalid restriction %q, valid values are Sunup or Sundown", words[idx])
		}
		if !hasLocation {
			return Event{}, fmt.Errorf("%s requires LAT_LONG to be set", words[idx])
		}
		idx++
	}

	if idx != len(words)-1 {
		return Event{}, fmt.Errorf("EVENT has unexpected arguments")
	}

	action, err := parseAction(words[idx], groups)
	if err != nil {
		return Event{}, err
	}
	event.Action = action

	return event, nil
}

func parseTrigger(w string, hasLocation bool) (Trigger, error) {
	switch {
	case strings.HasPrefix(w, "Sunrise"):
		if !hasLocation {
			return Trigger{}, fmt.Errorf("Sunrise requires LAT_LONG to be set")
		}
		offset, err := parseSolarOffset(strings.TrimPrefix(w, "Sunrise"))
		if err != nil {
			return Trigger{}, err
		}
		return Trigger{Kind: TriggerSunrise, Offset: offset}, nil

	case strings.HasPrefix(w, "Sunset"):
		if !hasLocation {
			return Trigger{}, fmt.Errorf("Sunset requires LAT_LONG to be set")
		}
		offset, err := parseSolarOffset(strings.TrimPrefix(w, "Sunset"))
		if err != nil {
			return Trigger{}, err
		}
		return Trigger{Kind: TriggerSunset, Offset: offset}, nil

	default:
		parts := strings.Split(w, ":")
		if len(parts) != 2 {
			return Trigger{}, fmt.Errorf("time should be HH:MM")
		}
		hour, err := strconv.Atoi(parts[0])
		if err != nil || hour < 0 || hour > 23 {
			return Trigger{}, fmt.Errorf("hour must be 0 to 23")
		}
		minute, err := strconv.Atoi(parts[1])
		if err != nil || minute < 0 || minute > 59 {
			return Trigger{}, fmt.Errorf("minute must be 0 to 59")
		}
		return Trigger{Kind: TriggerFixed, Hour: hour, Minute: minute}, nil
	}
}

// parseSolarOffset parses a signed fractional hour offset ("+1.5",
// "-0.25", or empty) into whole minutes.
func parseSolarOffset(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if s[0] != '+' && s[0] != '-' {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	hours, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	offset := int(math.Round(hours * 60))
	if offset <= -MaxOffsetMinutes || offset >= MaxOffsetMinutes {
		return 0, fmt.Errorf("offset must be more than -24 and less than 24 hours")
	}
	return offset, nil
}

func parseWeekdays(w string) (Weekdays, error) {
	var days Weekdays
	for _, day := range strings.Split(w, "/") {
		found := false
		for i, name := range weekdayNames {
			if day == name {
				days[i] = true
				found = true
				break
			}
		}
		if !found {
			return Weekdays{}, fmt.Errorf("%q is not a valid day", day)
		}
	}
	return days, nil
}

func parseAction(w string, groups *Groups) (Action, error) {
	open := strings.Index(w, "(")
	if open <= 0 || !strings.HasSuffix(w, ")") {
		return Action{}, fmt.Errorf("invalid function %q", w)
	}
	name := w[:open]
	params := strings.Split(w[open+1:len(w)-1], ",")

	devices, err := resolveDevices(params[0], groups)
	if err != nil {
		return Action{}, err
	}

	switch name {
	case "on":
		if len(params) != 1 {
			return Action{}, fmt.Errorf("on takes 1 argument")
		}
		return Action{Kind: ActionOn, Devices: devices}, nil

	case "off":
		if len(params) != 1 {
			return Action{}, fmt.Errorf("off takes 1 argument")
		}
		return Action{Kind: ActionOff, Devices: devices}, nil

	case "dim":
		if len(params) != 2 {
			return Action{}, fmt.Errorf("dim takes 2 arguments")
		}
		level, err := strconv.Atoi(params[1])
		if err != nil || level < 0 || level > 255 {
			return Action{}, fmt.Errorf("dim level must be 0 to 255")
		}
		return Action{Kind: ActionDim, Level: level, Devices: devices}, nil

	default:
		return Action{}, fmt.Errorf("invalid function %q", name)
	}
}

// resolveDevices expands a group reference ("G3") or parses a literal
// device id. Groups are expanded here, at rule construction time.
func resolveDevices(param string, groups *Groups) ([]int, error) {
	if strings.HasPrefix(param, "G") {
		id, err := parseGroupID(param)
		if err != nil {
			return nil, err
		}
		group, ok := groups.Get(id)
		if !ok {
			return nil, fmt.Errorf("group %d does not exist", id)
		}
		devices := make([]int, len(group.Devices))
		copy(devices, group.Devices)
		return devices, nil
	}

	dev, err := strconv.Atoi(param)
	if err != nil {
		return nil, fmt.Errorf("invalid device id %q", param)
	}
	return []int{dev}, nil
}
