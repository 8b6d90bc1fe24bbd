package compiler

import (
	"strings"

	"github.com/roach88/strapiql/internal/queryir"
)

// ResolveJoins turns populate requests into join specifications.
//
// Names are trimmed and blank names dropped. The output keeps first-occurrence
// order, contains each relation once, and skips relations in alreadyJoined.
// Every join is left outer and aliased by the relation name.
func ResolveJoins(relations []string, alreadyJoined []string) []queryir.Join {
	seen := make(map[string]bool, len(relations)+len(alreadyJoined))
	for _, rel := range alreadyJoined {
		seen[strings.TrimSpace(rel)] = true
	}

	joins := []queryir.Join{}
	for _, rel := range relations {
		rel = strings.TrimSpace(rel)
		if rel == "" || seen[rel] {
			continue
		}
		seen[rel] = true
		joins = append(joins, queryir.Join{
			Relation: rel,
			Alias:    rel,
			Kind:     queryir.JoinLeftOuter,
		})
	}
	return joins
}
