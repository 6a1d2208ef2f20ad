// Package message flattens inbound clinical messages (FHIR JSON or HL7
// v2.x text) into path-keyed value maps and rebuilds outbound messages
// from the transformed maps. All functions are pure.
package message

import (
	"sort"
	"strconv"
	"strings"
)

// resourceTypeKey is the discriminator key skipped during FHIR traversal.
const resourceTypeKey = "resourceType"

// ExtractFHIRPaths walks a decoded FHIR JSON value and returns every
// addressable leaf as a dot/bracket path, in traversal order.
//
// A list whose elements are all strings (2+ of them) is treated as one
// opaque multi-valued field: the path to the list itself is emitted
// rather than one path per element.
func ExtractFHIRPaths(data interface{}) []string {
	return extractFHIRPaths(data, "")
}

func extractFHIRPaths(data interface{}, prefix string) []string {
	var paths []string

	switch v := data.(type) {
	case map[string]interface{}:
		for _, key := range sortedKeys(v) {
			if key == resourceTypeKey {
				continue
			}
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			paths = append(paths, extractFHIRPaths(v[key], next)...)
		}
	case []interface{}:
		if len(v) == 0 {
			return nil
		}
		if len(v) > 1 && allStrings(v) {
			paths = append(paths, prefix)
			return paths
		}
		for i, item := range v {
			paths = append(paths, extractFHIRPaths(item, prefix+"["+strconv.Itoa(i)+"]")...)
		}
	default:
		paths = append(paths, prefix)
	}

	return paths
}

func allStrings(items []interface{}) bool {
	for _, it := range items {
		if _, ok := it.(string); !ok {
			return false
		}
	}
	return true
}

// sortedKeys returns map keys in a stable order so extraction output is
// deterministic across runs.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolveFHIRPath descends through a decoded FHIR JSON value following a
// dot/bracket path. Numeric tokens index lists, everything else keys
// objects. The second return is false when any step misses: absent key,
// index out of range, or a non-indexable node. Callers treat a miss as
// "skip", never as an error.
func ResolveFHIRPath(obj interface{}, path string) (interface{}, bool) {
	current := obj
	for _, key := range splitFHIRPath(path) {
		if idx, err := strconv.Atoi(key); err == nil {
			list, ok := current.([]interface{})
			if !ok || idx < 0 || idx >= len(list) {
				return nil, false
			}
			current = list[idx]
			continue
		}
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

// splitFHIRPath tokenizes "name[0].family" into ["name", "0", "family"],
// dropping empty tokens.
func splitFHIRPath(path string) []string {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '.' || r == '[' || r == ']'
	})
	return parts
}

// BuildFHIRGrouped groups the transformed flat map by destination
// resource type: resourceType -> {path: value}.
//
// The result is deliberately not reassembled into nested FHIR; it is a
// stub representation of the destination resources, kept for wire
// compatibility with the systems already consuming it.
func BuildFHIRGrouped(output map[string]interface{}, resourceByPath map[string]string) map[string]map[string]interface{} {
	resources := make(map[string]map[string]interface{})
	for path, value := range output {
		resource, ok := resourceByPath[path]
		if !ok {
			continue
		}
		if resources[resource] == nil {
			resources[resource] = make(map[string]interface{})
		}
		resources[resource][path] = value
	}
	return resources
}
