package message

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HL7 v2.x encoding characters. Repetition (~) is not addressed by the
// path notation and passes through as part of a field's text.
const (
	hl7FieldSep     = "|"
	hl7ComponentSep = "^"
	hl7SubSep       = "&"
)

// ExtractHL7SegmentPaths parses one segment line and returns its type and
// the dot-notation path of every non-empty field. Components (^) get
// SEG-f.c paths; a component containing sub-components (&) is emitted at
// sub-component depth (SEG-f.c.s) instead of component depth. All indices
// are 1-based.
func ExtractHL7SegmentPaths(segment string) (string, []string) {
	fields := strings.Split(segment, hl7FieldSep)
	segmentType := fields[0]

	var paths []string
	for i, field := range fields[1:] {
		fieldIdx := strconv.Itoa(i + 1)
		if field == "" {
			continue
		}
		if !strings.Contains(field, hl7ComponentSep) {
			paths = append(paths, segmentType+"-"+fieldIdx)
			continue
		}
		for j, component := range strings.Split(field, hl7ComponentSep) {
			compIdx := strconv.Itoa(j + 1)
			if strings.Contains(component, hl7SubSep) {
				for k := range strings.Split(component, hl7SubSep) {
					paths = append(paths, segmentType+"-"+fieldIdx+"."+compIdx+"."+strconv.Itoa(k+1))
				}
			} else {
				paths = append(paths, segmentType+"-"+fieldIdx+"."+compIdx)
			}
		}
	}
	return segmentType, paths
}

// SegmentLines splits a raw HL7 message into its segment lines,
// dropping the MSH header.
func SegmentLines(raw string) []string {
	return hl7Segments(raw)
}

// ExtractHL7Paths runs segment extraction over every segment after the
// MSH header and returns the union of discovered paths.
func ExtractHL7Paths(raw string) []string {
	var paths []string
	for _, segment := range hl7Segments(raw) {
		_, segPaths := ExtractHL7SegmentPaths(segment)
		paths = append(paths, segPaths...)
	}
	return paths
}

// ResolveHL7Values resolves every requested path against the message and
// returns path -> field text. Paths absent from the message are simply
// missing from the result. Every index is bounds-checked: a path that
// points past the end of a field, component, or sub-component list is
// skipped rather than panicking.
func ResolveHL7Values(raw string, paths []string) map[string]string {
	values := make(map[string]string)
	for _, segment := range hl7Segments(raw) {
		fields := strings.Split(segment, hl7FieldSep)
		for _, path := range paths {
			segType, fieldIdx, compIdx, subIdx, ok := parseHL7Path(path)
			if !ok || segType != fields[0] {
				continue
			}
			if fieldIdx < 1 || fieldIdx >= len(fields) {
				continue
			}
			field := fields[fieldIdx]

			// A field with no component separator is its own first
			// component; deeper addressing misses.
			if !strings.Contains(field, hl7ComponentSep) {
				if compIdx <= 1 && subIdx == 0 {
					values[path] = field
				}
				continue
			}
			components := strings.Split(field, hl7ComponentSep)
			if compIdx < 1 || compIdx > len(components) {
				continue
			}
			component := components[compIdx-1]

			if !strings.Contains(component, hl7SubSep) {
				if subIdx <= 1 {
					values[path] = component
				}
				continue
			}
			subs := strings.Split(component, hl7SubSep)
			if subIdx < 1 || subIdx > len(subs) {
				continue
			}
			values[path] = subs[subIdx-1]
		}
	}
	return values
}

// hl7Segments splits a raw message into its segment lines, dropping the
// MSH header and blank lines. \r, \n, and \r\n all separate segments.
func hl7Segments(raw string) []string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var segments []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "MSH") {
			continue
		}
		segments = append(segments, line)
	}
	return segments
}

// parseHL7Path splits "PID-5.1.2" into its segment type and 1-based
// indices. compIdx and subIdx are 0 when that depth is not addressed.
func parseHL7Path(path string) (segType string, fieldIdx, compIdx, subIdx int, ok bool) {
	dash := strings.Index(path, "-")
	if dash < 1 {
		return "", 0, 0, 0, false
	}
	segType = path[:dash]

	parts := strings.Split(path[dash+1:], ".")
	if len(parts) == 0 || len(parts) > 3 {
		return "", 0, 0, 0, false
	}
	idx := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return "", 0, 0, 0, false
		}
		idx[i] = n
	}
	fieldIdx = idx[0]
	if len(idx) > 1 {
		compIdx = idx[1]
	}
	if len(idx) > 2 {
		subIdx = idx[2]
	}
	return segType, fieldIdx, compIdx, subIdx, true
}

// BuildHL7Message assembles an outbound HL7 v2.5 message from a
// transformed flat map keyed by destination paths such as "PID-5.1".
//
// The MSH header carries the source and destination system names, the
// build timestamp, the route's message type, and a fresh control id, so
// every built message is uniquely identified. Fields are padded with
// empty strings up to the highest referenced index and components joined
// with ^, preserving column alignment. Segments after the header are
// emitted in sorted segment-name order.
func BuildHL7Message(output map[string]interface{}, src, dest, msgType string) string {
	segments := make(map[string][]string)

	for path, value := range output {
		segType, fieldIdx, compIdx, _, ok := parseHL7Path(path)
		if !ok {
			continue
		}
		fields := segments[segType]
		for len(fields) < fieldIdx {
			fields = append(fields, "")
		}
		if compIdx > 0 {
			comps := strings.Split(fields[fieldIdx-1], hl7ComponentSep)
			for len(comps) < compIdx {
				comps = append(comps, "")
			}
			comps[compIdx-1] = Stringify(value)
			fields[fieldIdx-1] = strings.Join(comps, hl7ComponentSep)
		} else {
			fields[fieldIdx-1] = Stringify(value)
		}
		segments[segType] = fields
	}

	header := strings.Join([]string{
		"MSH", `^~\&`, src, "", dest, "",
		time.Now().Format("20060102150405"), "",
		msgType, "MSG" + uuid.NewString(), "P", "2.5",
	}, hl7FieldSep)

	names := make([]string, 0, len(segments))
	for name := range segments {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{header}
	for _, name := range names {
		lines = append(lines, name+hl7FieldSep+strings.Join(segments[name], hl7FieldSep))
	}
	return strings.Join(lines, "\n")
}
