// Package models decides whether the required model is installed in the
// daemon's store and pulls it when it is not.
package models

import (
	"fmt"
	"strings"
)

// DefaultTag is assumed when a reference carries no tag.
const DefaultTag = "latest"

// Ref is a name:tag model reference.
type Ref struct {
	Name string
	Tag  string
}

// ParseRef parses "name[:tag]". A colon that belongs to a registry host
// ("host:5000/ns/name") is not mistaken for the tag separator.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("empty model reference")
	}
	name, tag := s, DefaultTag
	if i := strings.LastIndex(s, ":"); i > strings.LastIndex(s, "/") {
		name, tag = s[:i], s[i+1:]
	}
	if name == "" || tag == "" {
		return Ref{}, fmt.Errorf("invalid model reference %q", s)
	}
	if strings.ContainsAny(s, " \t\n") {
		return Ref{}, fmt.Errorf("invalid model reference %q: contains whitespace", s)
	}
	return Ref{Name: name, Tag: tag}, nil
}

func (r Ref) String() string { return r.Name + ":" + r.Tag }
