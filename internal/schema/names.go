package schema

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize cleans a submitted symptom name. Interior spacing is kept since some
// training columns contain it.
func Normalize(name string) string {
	return strings.TrimSpace(norm.NFKC.String(name))
}

// NormalizeAll normalizes names and drops the ones that end up empty.
func NormalizeAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = Normalize(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// DisplayName turns a column name like "skin_rash" into "Skin Rash".
func DisplayName(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	return cases.Title(language.English).String(strings.Join(words, " "))
}
