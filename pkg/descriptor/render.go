package descriptor

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"
)

// Descriptor documents may be templates: ${NAME} placeholders stand in for
// operator supplied configuration such as license keys and public domains.
// Rendering substitutes placeholders from a value map; what the map does not
// cover is left in place so lint can report it.

var placeholderPattern = regexp.MustCompile(`\$(\$?)\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Render substitutes ${NAME} placeholders in a raw descriptor document.
// $${NAME} escapes substitution and renders as a literal ${NAME}.
func Render(data []byte, values map[string]string) []byte {
	return placeholderPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := placeholderPattern.FindSubmatch(match)
		if len(groups[1]) > 0 {
			return match[1:]
		}
		name := string(groups[2])
		if value, ok := values[name]; ok {
			return []byte(value)
		}
		return match
	})
}

// Placeholders returns the names of unsubstituted placeholders remaining in
// the document, in order of first appearance.
func Placeholders(data []byte) []string {
	var names []string
	for _, match := range placeholderPattern.FindAllSubmatch(data, -1) {
		if len(match[1]) > 0 {
			continue
		}
		name := string(match[2])
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// Values resolves placeholder values for a command invocation: the process
// environment seeds the map, and explicit NAME=value pairs overlay it.
func Values(pairs []string) (map[string]string, error) {
	values := make(map[string]string)
	for _, pair := range os.Environ() {
		if name, value, ok := strings.Cut(pair, "="); ok && name != "" {
			values[name] = value
		}
	}

	explicit, err := ParseValues(pairs)
	if err != nil {
		return nil, err
	}
	maps.Copy(values, explicit)

	return values, nil
}

// ParseValues parses NAME=value pairs, as given after the -- separator on
// the command line. Later pairs win.
func ParseValues(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid value %q: expected NAME=value", pair)
		}
		values[name] = value
	}
	return values, nil
}
