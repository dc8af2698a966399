package session

import (
	"strings"
	"sync"
	"unicode"

	"github.com/astralume/astra/internal/api"
)

// titleWordLimit bounds the derived title length
const titleWordLimit = 6

// TitleCache memoizes derived display titles by session id for the life
// of the process. Once a title is computed it is never re-derived, even
// across reloads — deliberately trading staleness for fewer fetches and
// no sidebar flicker. SetTitle is the only correction path.
type TitleCache struct {
	mu     sync.RWMutex
	titles map[string]string
}

// NewTitleCache creates an empty title cache
func NewTitleCache() *TitleCache {
	return &TitleCache{titles: make(map[string]string)}
}

// Get returns the memoized title for a session, if any
func (tc *TitleCache) Get(sessionID string) (string, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	title, ok := tc.titles[sessionID]
	return title, ok
}

// Set stores or corrects a title
func (tc *TitleCache) Set(sessionID, title string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.titles[sessionID] = title
}

// Delete drops a title, typically after its session was removed
func (tc *TitleCache) Delete(sessionID string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	delete(tc.titles, sessionID)
}

// heuristicTitle derives a display title from a message: punctuation
// stripped, first six words, each capitalized, with an ellipsis when the
// original ran longer.
func heuristicTitle(text string) string {
	words := strings.Fields(stripPunctuation(text))
	truncated := len(words) > titleWordLimit
	if truncated {
		words = words[:titleWordLimit]
	}
	for i, word := range words {
		words[i] = capitalize(word)
	}
	title := strings.Join(words, " ")
	if truncated {
		title += "..."
	}
	return title
}

// fallbackTitle is used when a session has neither summary nor messages
func fallbackTitle(s api.Session) string {
	return "Chat " + s.CreatedAt.Format("Jan 2, 2006")
}

func stripPunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, text)
}

func capitalize(word string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
