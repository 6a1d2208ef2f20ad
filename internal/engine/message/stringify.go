package message

import (
	"fmt"
	"strconv"
	"strings"
)

// Stringify renders a flat-map value as field text. Multi-valued string
// leaves (a FHIR list extracted as one opaque field) join with single
// spaces; JSON numbers render without an exponent.
func Stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, " ")
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, " ")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
