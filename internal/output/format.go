package output

import (
	"fmt"
	"strings"
)

// Format selects where the cost table is written.
type Format string

const (
	FormatTerminal    Format = "terminal"
	FormatGoogleSheet Format = "google-sheet"
)

// Formats lists every supported output format.
var Formats = []Format{FormatTerminal, FormatGoogleSheet}

// ParseFormat returns the Format named by s.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unknown output format %q (want one of: %s)", s, strings.Join(names, ", "))
}
