package transform

import (
	"fmt"
	"strings"
)

// strftimeDirectives maps the strftime directives accepted in format
// rule configs to Go reference-time layout fragments. Configs keep the
// strftime notation so rule sets registered against earlier engine
// versions stay valid.
var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'p': "PM",
	'z': "-0700",
	'Z': "MST",
}

// strftimeLayout translates a strftime pattern into a Go time layout.
// Unknown directives are rejected rather than silently passed through.
func strftimeLayout(pattern string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(pattern) {
			return "", fmt.Errorf("trailing %% in pattern %q", pattern)
		}
		if pattern[i] == '%' {
			b.WriteByte('%')
			continue
		}
		frag, ok := strftimeDirectives[pattern[i]]
		if !ok {
			return "", fmt.Errorf("unsupported directive %%%c in pattern %q", pattern[i], pattern)
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}
