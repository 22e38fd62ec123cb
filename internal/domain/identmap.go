package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Identifier map labels
const (
	LabelCase = "dossier"
	LabelHead = "indigent"

	spousePrefix = "epouse"
	childPrefix  = "enfant"
)

// SpouseLabel returns epouse{n}, n is 1-indexed
func SpouseLabel(n int) string { return fmt.Sprintf("%s%d", spousePrefix, n) }

// ChildLabel returns enfant{n}, n is 1-indexed
func ChildLabel(n int) string { return fmt.Sprintf("%s%d", childPrefix, n) }

// Identifiers role label to generated identifier for one household.
// The case identifier is a string, person identifiers are numbers.
type Identifiers map[string]any

// IdentifierMap survey ident to the identifiers created for it
type IdentifierMap map[string]Identifiers

// Merge copies other into m
func (m IdentifierMap) Merge(other IdentifierMap) {
	for ident, ids := range other {
		m[ident] = ids
	}
}

// Idents returns the survey idents in sorted order
func (m IdentifierMap) Idents() []string {
	out := make([]string, 0, len(m))
	for ident := range m {
		out = append(out, ident)
	}
	sort.Strings(out)
	return out
}

// Labels returns the labels of ids in import order: dossier, indigent,
// spouses by number, then children by number. Unknown labels sort last.
func (ids Identifiers) Labels() []string {
	out := make([]string, 0, len(ids))
	for l := range ids {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, ni := labelRank(out[i])
		rj, nj := labelRank(out[j])
		if ri != rj {
			return ri < rj
		}
		if ni != nj {
			return ni < nj
		}
		return out[i] < out[j]
	})
	return out
}

func labelRank(label string) (rank, n int) {
	switch label {
	case LabelCase:
		return 0, 0
	case LabelHead:
		return 1, 0
	}
	for r, prefix := range []string{spousePrefix, childPrefix} {
		if rest, ok := strings.CutPrefix(label, prefix); ok {
			if n, err := strconv.Atoi(rest); err == nil {
				return 2 + r, n
			}
		}
	}
	return 4, 0
}
