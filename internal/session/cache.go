package session

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/astralume/astra/internal/api"
)

// defaultPageSize bounds one roster page and, transitively, the number of
// concurrent first-message fetches a reload may fire.
const defaultPageSize = 50

// firstMessageLimit is how much history to inspect when deriving a title
const firstMessageLimit = 10

// RosterAPI is the slice of the API client the list cache depends on
type RosterAPI interface {
	ListSessions(ctx context.Context, limit, offset int) (*api.SessionPage, error)
	SessionMessages(ctx context.Context, sessionID string, limit, offset int) (*api.MessagePage, error)
	CreateSession(ctx context.Context) (*api.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Entry is one roster row with its derived display title
type Entry struct {
	api.Session
	DisplayTitle string
}

// ListCache maintains the authenticated user's session roster.
//
// Titles come from the server summary when one exists, otherwise from a
// heuristic over the session's first stored user message, otherwise from
// the creation date. Derivations are memoized in a TitleCache owned by
// this object (never ambient package state) for the life of the process.
//
// Reloads are supersedable, not queued: starting a new reload cancels the
// in-flight one and its results are discarded silently.
type ListCache struct {
	client   RosterAPI
	titles   *TitleCache
	logger   *log.Logger
	pageSize int

	mu      sync.Mutex
	entries []Entry
	cancel  context.CancelFunc
	gen     uint64
}

// CacheOptions configures a ListCache
type CacheOptions struct {
	PageSize int
	Titles   *TitleCache
	Logger   *log.Logger
}

// NewListCache creates a session list cache
func NewListCache(client RosterAPI, options CacheOptions) *ListCache {
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	titles := options.Titles
	if titles == nil {
		titles = NewTitleCache()
	}
	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &ListCache{
		client:   client,
		titles:   titles,
		logger:   logger,
		pageSize: pageSize,
	}
}

// Reload fetches the roster and derives any missing titles.
//
// A reload that gets superseded by a newer one returns (nil, nil): its
// results are dropped, and dropping them is not an error. Title fetches
// for sessions without a usable summary run concurrently, one per roster
// row, so the fan-out is bounded by the page size.
func (c *ListCache) Reload(ctx context.Context) ([]Entry, error) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	page, err := c.client.ListSessions(ctx, c.pageSize, 0)
	if err != nil {
		if ctx.Err() != nil && !c.current(gen) {
			c.logger.Debug("superseded roster reload dropped")
			return nil, nil
		}
		return nil, err
	}

	entries := make([]Entry, len(page.Sessions))
	var wg sync.WaitGroup
	for i, s := range page.Sessions {
		entries[i] = Entry{Session: s}

		if title, ok := c.titles.Get(s.ID); ok {
			entries[i].DisplayTitle = title
			continue
		}
		if s.Summary != nil && strings.TrimSpace(*s.Summary) != "" {
			entries[i].DisplayTitle = strings.TrimSpace(*s.Summary)
			continue
		}

		wg.Add(1)
		go func(i int, s api.Session) {
			defer wg.Done()
			entries[i].DisplayTitle = c.deriveTitle(ctx, s)
		}(i, s)
	}
	wg.Wait()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("superseded roster reload dropped")
		return nil, nil
	}
	for _, entry := range entries {
		c.titles.Set(entry.ID, entry.DisplayTitle)
	}
	c.entries = entries
	c.cancel = nil
	c.mu.Unlock()

	return entries, nil
}

// Load is Reload under its first-use name
func (c *ListCache) Load(ctx context.Context) ([]Entry, error) {
	return c.Reload(ctx)
}

// deriveTitle inspects the first stored user message of a session. Any
// fetch problem falls through to the date fallback; a sidebar title is
// never worth failing a reload over.
func (c *ListCache) deriveTitle(ctx context.Context, s api.Session) string {
	page, err := c.client.SessionMessages(ctx, s.ID, firstMessageLimit, 0)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Debug("title derivation fetch failed", "session", s.ID, "error", err)
		}
		return fallbackTitle(s)
	}
	for _, m := range page.Messages {
		if m.Role == "user" && strings.TrimSpace(m.Content) != "" {
			return heuristicTitle(m.Content)
		}
	}
	return fallbackTitle(s)
}

// Sessions returns a snapshot of the cached roster
func (c *ListCache) Sessions() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// UpdateTitle corrects the memoized title of one session, typically when
// the active session's provisional title settles.
func (c *ListCache) UpdateTitle(sessionID, title string) {
	c.titles.Set(sessionID, title)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].ID == sessionID {
			c.entries[i].DisplayTitle = title
			return
		}
	}
}

// Touch refreshes the roster row of one session in place without a full
// reload. Sessions are otherwise never mutated.
func (c *ListCache) Touch(s api.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].ID == s.ID {
			c.entries[i].Session = s
			return
		}
	}
}

// Create makes a fresh session and prepends it to the roster
func (c *ListCache) Create(ctx context.Context) (*Entry, error) {
	s, err := c.client.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	entry := Entry{Session: *s, DisplayTitle: fallbackTitle(*s)}
	c.titles.Set(s.ID, entry.DisplayTitle)

	c.mu.Lock()
	c.entries = append([]Entry{entry}, c.entries...)
	c.mu.Unlock()
	return &entry, nil
}

// Remove deletes a session server-side and drops it from the roster and
// the title cache without a full reload.
func (c *ListCache) Remove(ctx context.Context, sessionID string) error {
	if err := c.client.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	c.titles.Delete(sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].ID == sessionID {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

// current reports whether gen is still the newest reload generation
func (c *ListCache) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}
