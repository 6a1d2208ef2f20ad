// Package transform applies a route's mapping rules to a flat source
// value map, producing the flat destination map the message builders
// consume. The five transform kinds form a closed set; adding a kind
// means touching Parse, Apply, and the registration validator together.
package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/interlink/engine/internal/engine/message"
)

// Kind identifies one of the five supported transforms.
type Kind string

const (
	KindCopy   Kind = "copy"
	KindMap    Kind = "map"
	KindFormat Kind = "format"
	KindSplit  Kind = "split"
	KindConcat Kind = "concat"
)

// ValidKind reports whether k names a supported transform.
func ValidKind(k string) bool {
	switch Kind(k) {
	case KindCopy, KindMap, KindFormat, KindSplit, KindConcat:
		return true
	}
	return false
}

// defaultDelimiter is used by split and concat when the rule config
// carries none.
const defaultDelimiter = " "

// Transform is the parsed, kind-specific configuration of a rule.
type Transform struct {
	Kind Kind

	// map: value substitution table keyed by the stringified source value.
	Table map[string]string

	// format: strftime patterns the stored configs use.
	From, To string

	// split/concat delimiter.
	Delimiter string
}

// Parse validates a persisted (kind, config) pair into a Transform.
func Parse(kind string, config map[string]interface{}) (Transform, error) {
	t := Transform{Kind: Kind(kind)}

	switch t.Kind {
	case KindCopy:
	case KindMap:
		t.Table = make(map[string]string, len(config))
		for k, v := range config {
			t.Table[k] = message.Stringify(v)
		}
	case KindFormat:
		from, _ := config["from"].(string)
		to, _ := config["to"].(string)
		if from == "" || to == "" {
			return Transform{}, fmt.Errorf("format transform requires from and to patterns")
		}
		if _, err := strftimeLayout(from); err != nil {
			return Transform{}, fmt.Errorf("format transform: %w", err)
		}
		if _, err := strftimeLayout(to); err != nil {
			return Transform{}, fmt.Errorf("format transform: %w", err)
		}
		t.From, t.To = from, to
	case KindSplit, KindConcat:
		t.Delimiter = defaultDelimiter
		if d, ok := config["delimiter"].(string); ok && d != "" {
			t.Delimiter = d
		}
	default:
		return Transform{}, fmt.Errorf("unknown transform kind %q", kind)
	}

	return t, nil
}

// Rule links one source field to one destination field under a
// transform. Split and concat groups are stored as one Rule per leg,
// sharing the source (split) or destination (concat) field id.
type Rule struct {
	ID          uuid.UUID
	SrcFieldID  uuid.UUID
	DestFieldID uuid.UUID
	Transform   Transform
}

// Apply runs the route's rules over the flat source map and returns the
// flat destination map. srcPaths and destPaths translate field ids to
// the fields' native paths.
//
// Three passes share the output map: direct rules (copy/map/format),
// then concat groups, then split groups. A later pass overwrites an
// earlier write to the same destination path; no priority beyond pass
// order is defined. Missing source values, unknown map keys, and
// unparsable dates are soft failures: logged, skipped, never fatal to
// the message.
func Apply(rules []Rule, values map[string]interface{}, srcPaths, destPaths map[uuid.UUID]string, logger zerolog.Logger) map[string]interface{} {
	output := make(map[string]interface{})

	var concatGroups, splitGroups ruleGroups

	for _, rule := range rules {
		switch rule.Transform.Kind {
		case KindConcat:
			concatGroups.add(rule.DestFieldID, rule)
		case KindSplit:
			splitGroups.add(rule.SrcFieldID, rule)
		default:
			applyDirect(rule, values, srcPaths, destPaths, output, logger)
		}
	}

	for _, group := range concatGroups.ordered {
		applyConcat(concatGroups.byKey[group], values, srcPaths, destPaths, output, logger)
	}
	for _, group := range splitGroups.ordered {
		applySplit(splitGroups.byKey[group], values, srcPaths, destPaths, output, logger)
	}

	return output
}

// ruleGroups preserves first-seen group order so group application is
// deterministic and split legs keep their declared order.
type ruleGroups struct {
	byKey   map[uuid.UUID][]Rule
	ordered []uuid.UUID
}

func (g *ruleGroups) add(key uuid.UUID, rule Rule) {
	if g.byKey == nil {
		g.byKey = make(map[uuid.UUID][]Rule)
	}
	if _, seen := g.byKey[key]; !seen {
		g.ordered = append(g.ordered, key)
	}
	g.byKey[key] = append(g.byKey[key], rule)
}

func applyDirect(rule Rule, values map[string]interface{}, srcPaths, destPaths map[uuid.UUID]string, output map[string]interface{}, logger zerolog.Logger) {
	srcPath, ok := srcPaths[rule.SrcFieldID]
	if !ok {
		logger.Error().Str("rule", rule.ID.String()).Str("field", rule.SrcFieldID.String()).
			Msg("rule references a source field missing from the catalog")
		return
	}
	value, present := values[srcPath]
	if !present {
		logger.Warn().Str("rule", rule.ID.String()).Str("path", srcPath).
			Msg("source path absent from message, rule skipped")
		return
	}

	switch rule.Transform.Kind {
	case KindMap:
		// Values without a table entry pass through unchanged.
		if mapped, ok := rule.Transform.Table[message.Stringify(value)]; ok {
			value = mapped
		}
	case KindFormat:
		formatted, err := reformatDate(message.Stringify(value), rule.Transform.From, rule.Transform.To)
		if err != nil {
			logger.Error().Err(err).Str("rule", rule.ID.String()).Str("path", srcPath).
				Msg("date reformat failed, destination left unset")
			return
		}
		value = formatted
	}

	destPath, ok := destPaths[rule.DestFieldID]
	if !ok {
		logger.Error().Str("rule", rule.ID.String()).Str("field", rule.DestFieldID.String()).
			Msg("rule references a destination field missing from the catalog")
		return
	}
	output[destPath] = value
}

func applyConcat(group []Rule, values map[string]interface{}, srcPaths, destPaths map[uuid.UUID]string, output map[string]interface{}, logger zerolog.Logger) {
	var parts []string
	for _, rule := range group {
		srcPath, ok := srcPaths[rule.SrcFieldID]
		if !ok {
			logger.Error().Str("rule", rule.ID.String()).Str("field", rule.SrcFieldID.String()).
				Msg("concat leg references a source field missing from the catalog")
			continue
		}
		value, present := values[srcPath]
		if !present {
			// Absent sources are omitted from the join entirely, never
			// rendered as empty placeholders.
			logger.Warn().Str("rule", rule.ID.String()).Str("path", srcPath).
				Msg("concat source absent from message, leg skipped")
			continue
		}
		parts = append(parts, message.Stringify(value))
	}

	destPath, ok := destPaths[group[0].DestFieldID]
	if !ok {
		logger.Error().Str("field", group[0].DestFieldID.String()).
			Msg("concat group references a destination field missing from the catalog")
		return
	}
	output[destPath] = strings.Join(parts, group[0].Transform.Delimiter)
}

func applySplit(group []Rule, values map[string]interface{}, srcPaths, destPaths map[uuid.UUID]string, output map[string]interface{}, logger zerolog.Logger) {
	srcPath, ok := srcPaths[group[0].SrcFieldID]
	if !ok {
		logger.Error().Str("field", group[0].SrcFieldID.String()).
			Msg("split group references a source field missing from the catalog")
		return
	}
	value, present := values[srcPath]
	if !present {
		logger.Warn().Str("path", srcPath).Msg("split source absent from message, group skipped")
		return
	}

	delimiter := group[0].Transform.Delimiter
	parts := strings.Split(message.Stringify(value), delimiter)

	for i, rule := range group {
		if i >= len(parts) {
			// More destination legs than parts: the extras get no value.
			break
		}
		destPath, ok := destPaths[rule.DestFieldID]
		if !ok {
			logger.Error().Str("rule", rule.ID.String()).Str("field", rule.DestFieldID.String()).
				Msg("split leg references a destination field missing from the catalog")
			continue
		}
		part := parts[i]
		if i == len(group)-1 && len(parts) > len(group) {
			// More parts than legs: the leftovers ride on the last leg
			// instead of being discarded.
			part = strings.Join(parts[i:], delimiter)
		}
		output[destPath] = part
	}
}

// reformatDate parses text with the strftime pattern from and re-renders
// it with to.
func reformatDate(text, from, to string) (string, error) {
	fromLayout, err := strftimeLayout(from)
	if err != nil {
		return "", err
	}
	toLayout, err := strftimeLayout(to)
	if err != nil {
		return "", err
	}
	t, err := time.Parse(fromLayout, text)
	if err != nil {
		return "", fmt.Errorf("parse %q with pattern %q: %w", text, from, err)
	}
	return t.Format(toLayout), nil
}
