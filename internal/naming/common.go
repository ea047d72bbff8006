// Package naming derives presentation display names from the names of the
// dm+d objects that share the presentation's BNF code.
package naming

import (
	"sort"
	"strings"
)

// Trailing words dropped from a common prefix: the names probably went on
// to differ in an accessory ("with"), a carrier ("in") or a size ("size").
var trailingStopWords = map[string]bool{"with": true, "in": true, "size": true}

// CommonName returns the longest word-wise prefix shared by names.
//
//	CommonName([]string{
//		"Polyfield Soft Vinyl Patient Pack with small gloves",
//		"Polyfield Soft Vinyl Patient Pack with medium gloves",
//	}) == "Polyfield Soft Vinyl Patient Pack"
//
// Names are sorted first and folded pairwise. After each step a trailing
// stop word is dropped, then a trailing "oral" (oral solution vs oral
// suspension). There is no result when two names share no first word, or
// when the prefix has fewer than half as many words as the first sorted
// name.
func CommonName(names []string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	common := strings.Fields(sorted[0])
	for _, name := range sorted[1:] {
		other := strings.Fields(name)

		var words []string
		for i := 0; i < len(common) && i < len(other); i++ {
			if common[i] != other[i] {
				break
			}
			words = append(words, common[i])
		}
		if len(words) == 0 {
			return "", false
		}

		if trailingStopWords[words[len(words)-1]] {
			words = words[:len(words)-1]
		}
		if len(words) > 0 && words[len(words)-1] == "oral" {
			words = words[:len(words)-1]
		}
		if len(words) == 0 {
			return "", false
		}
		common = words
	}

	if len(common) < len(strings.Fields(sorted[0]))/2 {
		return "", false
	}
	return strings.Join(common, " "), true
}
