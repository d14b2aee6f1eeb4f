package models

import (
	"regexp"
	"strings"

	"modelboot/pkg/types"
)

// Matcher recognizes a model in the daemon's list output.
type Matcher struct {
	fields *regexp.Regexp
	colon  *regexp.Regexp
}

// NewMatcher matches lines holding ref's name followed by whitespace and its
// tag, each as a whole field. With acceptColon the single-field "name:tag"
// form also matches.
func NewMatcher(ref Ref, acceptColon bool) *Matcher {
	name, tag := regexp.QuoteMeta(ref.Name), regexp.QuoteMeta(ref.Tag)
	m := &Matcher{fields: regexp.MustCompile(`(?m)(?:^|\s)` + name + `[ \t]+` + tag + `(?:\s|$)`)}
	if acceptColon {
		m.colon = regexp.MustCompile(`(?m)(?:^|\s)` + name + `:` + tag + `(?:\s|$)`)
	}
	return m
}

// Match reports whether any line of out names the model.
func (m *Matcher) Match(out string) bool {
	if m.fields.MatchString(out) {
		return true
	}
	return m.colon != nil && m.colon.MatchString(out)
}

// ParseList splits list output into entries, skipping blank lines and the
// NAME header row.
func ParseList(out string) []types.ModelEntry {
	var entries []types.ModelEntry
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) == 0 || strings.EqualFold(f[0], "NAME") {
			continue
		}
		e := types.ModelEntry{Raw: strings.TrimRight(line, "\r")}
		if i := strings.LastIndex(f[0], ":"); i > strings.LastIndex(f[0], "/") {
			e.Name, e.Tag = f[0][:i], f[0][i+1:]
			e.Rest = f[1:]
		} else {
			e.Name = f[0]
			if len(f) > 1 {
				e.Tag = f[1]
				e.Rest = f[2:]
			}
		}
		if len(e.Rest) == 0 {
			e.Rest = nil
		}
		entries = append(entries, e)
	}
	return entries
}
