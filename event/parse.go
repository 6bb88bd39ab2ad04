package event

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/armcmn/cmn-pmu/cmnerr"
)

var (
	gatePattern  = regexp.MustCompile(`(?i)^(cmn\d+/[^/]*/)(,cmn\d+/[^/]*/)*$`)
	tuplePattern = regexp.MustCompile(`(?i)cmn\d+/[^/]*/`)
)

// Parse compiles a full `-e` argument, which may chain several
// `cmn<N>/.../` tuples separated by commas, into one Event per tuple.
func Parse(s string) ([]*Event, error) {
	if !gatePattern.MatchString(s) {
		return nil, cmnerr.Newf(cmnerr.ParseError, "invalid event string %q", s)
	}
	tuples := tuplePattern.FindAllString(s, -1)
	events := make([]*Event, 0, len(tuples))
	for _, tuple := range tuples {
		ev, err := parseTuple(strings.ToLower(tuple))
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// parseTuple compiles a single "cmn<N>/key=val,.../" tuple.
func parseTuple(s string) (*Event, error) {
	if !strings.HasPrefix(s, "cmn") {
		return nil, cmnerr.Newf(cmnerr.ParseError, "event %q must start with cmnN", s)
	}
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) != 2 {
		return nil, cmnerr.Newf(cmnerr.ParseError, "malformed event %q", s)
	}
	mesh, err := strconv.Atoi(parts[0][3:])
	if err != nil || mesh < 0 {
		return nil, cmnerr.Newf(cmnerr.ParseError, "invalid mesh index in %q", s)
	}

	var (
		xpNID     = -1
		port      = -1
		haveXP    bool
		havePort  bool
		channel   Channel
		haveChan  bool
		direction Direction
		haveDir   bool
	)
	userArgs := map[string]string{}
	groupOrder := []int{0}
	groups := map[int]*MatchGroup{0: {Group: 0, Matches: map[string]string{}}}
	currentGroup := 0

	for _, item := range strings.Split(parts[1], ",") {
		if item == "" {
			continue
		}
		if item == "up" || item == "down" {
			if haveDir {
				return nil, cmnerr.Newf(cmnerr.ParseError, "duplicated up|down in %q", s)
			}
			haveDir = true
			if item == "up" {
				direction = DirectionUp
			} else {
				direction = DirectionDown
			}
			continue
		}
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, cmnerr.Newf(cmnerr.ParseError, "invalid item %q in %q", item, s)
		}
		switch {
		case key == "xp":
			if haveXP {
				return nil, cmnerr.Newf(cmnerr.ParseError, "duplicated xp= in %q", s)
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, cmnerr.Newf(cmnerr.ParseError, "invalid xp= value in %q", s)
			}
			xpNID, haveXP = n, true
		case key == "port":
			if havePort {
				return nil, cmnerr.Newf(cmnerr.ParseError, "duplicated port= in %q", s)
			}
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n >= 6 {
				return nil, cmnerr.Newf(cmnerr.ParseError, "invalid port= value in %q", s)
			}
			port, havePort = n, true
		case key == "channel":
			if haveChan {
				return nil, cmnerr.Newf(cmnerr.ParseError, "duplicated channel= in %q", s)
			}
			ch, ok := channelNames[value]
			if !ok {
				return nil, cmnerr.Newf(cmnerr.ParseError, "invalid channel %q in %q", value, s)
			}
			channel, haveChan = ch, true
		case key == "group":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 2 {
				return nil, cmnerr.Newf(cmnerr.ParseError, "invalid group= value in %q", s)
			}
			if _, ok := groups[n]; !ok {
				groups[n] = &MatchGroup{Group: n, Matches: map[string]string{}}
				groupOrder = append(groupOrder, n)
			}
			currentGroup = n
		case strings.HasPrefix(key, "%"):
			if _, dup := userArgs[key]; dup {
				return nil, cmnerr.Newf(cmnerr.ParseError, "duplicated %s= in %q", key, s)
			}
			userArgs[key] = value
		default:
			g := groups[currentGroup]
			if _, dup := g.Matches[key]; dup {
				return nil, cmnerr.Newf(cmnerr.ParseError, "duplicated %s= in %q", key, s)
			}
			g.Matches[key] = value
			g.fieldOrder = append(g.fieldOrder, key)
		}
	}

	if !haveXP {
		return nil, cmnerr.New(cmnerr.ParseError, "missing xp=nid")
	}
	if !havePort {
		return nil, cmnerr.New(cmnerr.ParseError, "missing port=n")
	}
	if !haveChan {
		return nil, cmnerr.New(cmnerr.ParseError, "missing channel=req|rsp|snp|dat")
	}
	if !haveDir {
		return nil, cmnerr.New(cmnerr.ParseError, "missing up|down")
	}

	// drop empty groups but keep at least one
	var matchGroups []MatchGroup
	for _, g := range groupOrder {
		mg := groups[g]
		if len(mg.Matches) > 0 {
			matchGroups = append(matchGroups, *mg)
		}
	}
	if len(matchGroups) == 0 {
		matchGroups = []MatchGroup{{Group: 0, Matches: map[string]string{}}}
	}
	if len(matchGroups) > 2 {
		return nil, cmnerr.Newf(cmnerr.ParseError, "too many match groups in %q", s)
	}

	for _, mg := range matchGroups {
		if direction == DirectionUp {
			if _, has := mg.Matches["srcid"]; has {
				return nil, cmnerr.New(cmnerr.ParseError, "only download watchpoint supports srcid")
			}
		} else {
			if _, has := mg.Matches["tgtid"]; has {
				return nil, cmnerr.New(cmnerr.ParseError, "only upload watchpoint supports tgtid")
			}
		}
	}

	valMasks := make([]ValMask, len(matchGroups))
	for i, mg := range matchGroups {
		vm, err := compileMatchGroup(channel, mg.Group, mg.Matches)
		if err != nil {
			return nil, err
		}
		valMasks[i] = vm
	}

	ev := &Event{
		Mesh:        mesh,
		XPNodeID:    xpNID,
		Port:        port,
		Channel:     channel,
		Direction:   direction,
		MatchGroups: matchGroups,
		ValMasks:    valMasks,
		UserArgs:    userArgs,
	}
	ev.Name = buildName(ev)
	return ev, nil
}

// compileMatchGroup turns one group's field=value pairs into the (value,
// mask) pair its watchpoint register gets programmed with. Field
// positions are looked up in the group's own layout: wp_grp selects
// which filter set the hardware applies, and each set packs different
// fields into the 64-bit match word.
func compileMatchGroup(ch Channel, group int, matches map[string]string) (ValMask, error) {
	groups, ok := matchFieldTable[ch]
	if !ok {
		return ValMask{}, cmnerr.Newf(cmnerr.ParseError, "no fields known for channel %s", ch)
	}
	fields := groups[group]
	var value, mask uint64
	for field, raw := range matches {
		br, ok := fields[field]
		if !ok {
			return ValMask{}, cmnerr.Newf(cmnerr.ParseError,
				"unknown field %q for channel %s group %d", field, ch, group)
		}
		var n uint64
		if field == "opcode" {
			v, err := resolveOpcode(ch, raw)
			if err != nil {
				return ValMask{}, err
			}
			n = v
		} else {
			v, err := strconv.ParseUint(raw, 0, 64)
			if err != nil {
				return ValMask{}, cmnerr.Newf(cmnerr.ParseError, "invalid value %q for field %q", raw, field)
			}
			n = v
		}
		width := br.hi - br.lo + 1
		if width < 64 && n >= (uint64(1)<<width) {
			return ValMask{}, cmnerr.Newf(cmnerr.ParseError, "value %d out of range for field %q", n, field)
		}
		fieldMask := (uint64(1)<<width - 1) << br.lo
		if mask&fieldMask != 0 {
			return ValMask{}, cmnerr.Newf(cmnerr.ParseError, "overlapping field %q in match group", field)
		}
		value |= n << br.lo
		mask |= fieldMask
	}
	return ValMask{Value: value, Mask: ^mask}, nil
}

func resolveOpcode(ch Channel, raw string) (uint64, error) {
	if n, err := strconv.ParseUint(raw, 0, 64); err == nil {
		return n, nil
	}
	table, ok := opcodeTable[ch]
	if !ok {
		return 0, cmnerr.Newf(cmnerr.ParseError, "no opcodes known for channel %s", ch)
	}
	if n, ok := table[raw]; ok {
		return n, nil
	}
	return 0, cmnerr.Newf(cmnerr.ParseError, "invalid opcode %q for channel %s", raw, ch)
}

// buildName constructs a stable identifier for reporting, e.g.
// cmn0-xp10-port1-up-req-grp0-readshared-lpid2.
func buildName(ev *Event) string {
	name := "cmn" + strconv.Itoa(ev.Mesh) +
		"-xp" + strconv.Itoa(ev.XPNodeID) +
		"-port" + strconv.Itoa(ev.Port) +
		"-" + ev.Direction.String() +
		"-" + ev.Channel.String()
	for _, mg := range ev.MatchGroups {
		if len(mg.Matches) == 0 {
			continue
		}
		name += "-grp" + strconv.Itoa(mg.Group)
		for _, k := range mg.fieldOrder {
			v := mg.Matches[k]
			if k == "opcode" {
				name += "-" + v
			} else {
				name += "-" + k + v
			}
		}
	}
	return name
}
