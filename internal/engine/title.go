package engine

import "strings"

// titleWordLimit bounds how much of the first message seeds a title
const titleWordLimit = 6

// ProvisionalTitle derives a session title from the first message of a
// fresh session: the first six cleaned words, verbatim otherwise. The
// server may later replace it with a real summary.
func ProvisionalTitle(text string) string {
	words := strings.Fields(text)
	cleaned := make([]string, 0, titleWordLimit)
	for _, word := range words {
		word = strings.Trim(word, `.,!?;:"'`)
		if word == "" {
			continue
		}
		cleaned = append(cleaned, word)
		if len(cleaned) == titleWordLimit {
			break
		}
	}
	return strings.Join(cleaned, " ")
}
