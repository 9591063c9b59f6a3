// Package text renders unified diffs between document snapshots.
package text

import (
	"bytes"
	"strings"

	"github.com/davidmdm/ansi"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

type File struct {
	Name    string
	Content string
}

// ToYamlFile encodes value as an indented YAML document ready for diffing.
func ToYamlFile(name string, value any) (File, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	err := encoder.Encode(value)
	return File{Name: name, Content: buf.String()}, err
}

type DiffFunc func(current, next File, context int) string

func Diff(current, next File, context int) string {
	result, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(current.Content),
		B:        difflib.SplitLines(next.Content),
		FromFile: current.Name,
		ToFile:   next.Name,
		Context:  context,
	})
	return result
}

var (
	removed = ansi.MakeStyle(ansi.FgGreen)
	added   = ansi.MakeStyle(ansi.FgRed)
)

// DiffColorized shows lines only present in current in green, and lines
// introduced by next in red.
func DiffColorized(current, next File, context int) string {
	var out strings.Builder
	for i, line := range strings.Split(Diff(current, next, context), "\n") {
		if i > 0 {
			out.WriteByte('\n')
		}
		switch {
		case strings.HasPrefix(line, "-"):
			out.WriteString(removed.Sprint(line))
		case strings.HasPrefix(line, "+"):
			out.WriteString(added.Sprint(line))
		default:
			out.WriteString(line)
		}
	}
	return out.String()
}
