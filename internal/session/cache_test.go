package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralume/astra/internal/api"
)

// fakeRosterAPI scripts the roster endpoints
type fakeRosterAPI struct {
	mu           sync.Mutex
	listCalls    int
	messageCalls map[string]int

	listFn     func(ctx context.Context) (*api.SessionPage, error)
	messagesFn func(ctx context.Context, sessionID string) (*api.MessagePage, error)
	createFn   func(ctx context.Context) (*api.Session, error)
	deleteFn   func(ctx context.Context, sessionID string) error
}

func (f *fakeRosterAPI) ListSessions(ctx context.Context, limit, offset int) (*api.SessionPage, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	return f.listFn(ctx)
}

func (f *fakeRosterAPI) SessionMessages(ctx context.Context, sessionID string, limit, offset int) (*api.MessagePage, error) {
	f.mu.Lock()
	if f.messageCalls == nil {
		f.messageCalls = make(map[string]int)
	}
	f.messageCalls[sessionID]++
	f.mu.Unlock()
	return f.messagesFn(ctx, sessionID)
}

func (f *fakeRosterAPI) CreateSession(ctx context.Context) (*api.Session, error) {
	return f.createFn(ctx)
}

func (f *fakeRosterAPI) DeleteSession(ctx context.Context, sessionID string) error {
	return f.deleteFn(ctx, sessionID)
}

func (f *fakeRosterAPI) messageCallCount(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messageCalls[sessionID]
}

func strPtr(s string) *string { return &s }

func sessionRow(id string, summary *string) api.Session {
	return api.Session{
		ID:        id,
		CreatedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Summary:   summary,
	}
}

func userMessagePage(content string) *api.MessagePage {
	return &api.MessagePage{Messages: []api.SessionMessage{
		{ID: "m1", Role: "user", Content: content},
	}}
}

func TestReloadTitlePrecedence(t *testing.T) {
	client := &fakeRosterAPI{
		listFn: func(ctx context.Context) (*api.SessionPage, error) {
			return &api.SessionPage{Sessions: []api.Session{
				sessionRow("with-summary", strPtr("Career Outlook")),
				sessionRow("with-message", nil),
				sessionRow("empty", nil),
			}}, nil
		},
		messagesFn: func(ctx context.Context, sessionID string) (*api.MessagePage, error) {
			if sessionID == "with-message" {
				return userMessagePage("what does Saturn in my 10th house mean for me?"), nil
			}
			return &api.MessagePage{}, nil
		},
	}
	cache := NewListCache(client, CacheOptions{})

	entries, err := cache.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "Career Outlook", entries[0].DisplayTitle)
	assert.Equal(t, "What Does Saturn In My 10th...", entries[1].DisplayTitle)
	assert.Equal(t, "Chat Aug 20, 2026", entries[2].DisplayTitle)
}

func TestReloadMemoizesTitlesAcrossReloads(t *testing.T) {
	client := &fakeRosterAPI{
		listFn: func(ctx context.Context) (*api.SessionPage, error) {
			return &api.SessionPage{Sessions: []api.Session{sessionRow("s1", nil)}}, nil
		},
		messagesFn: func(ctx context.Context, sessionID string) (*api.MessagePage, error) {
			return userMessagePage("tell me about love"), nil
		},
	}
	cache := NewListCache(client, CacheOptions{})

	_, err := cache.Reload(context.Background())
	require.NoError(t, err)
	entries, err := cache.Reload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Tell Me About Love", entries[0].DisplayTitle)
	assert.Equal(t, 1, cache.client.(*fakeRosterAPI).messageCallCount("s1"))
}

func TestReloadDerivationFailureFallsBackToDate(t *testing.T) {
	client := &fakeRosterAPI{
		listFn: func(ctx context.Context) (*api.SessionPage, error) {
			return &api.SessionPage{Sessions: []api.Session{sessionRow("s1", nil)}}, nil
		},
		messagesFn: func(ctx context.Context, sessionID string) (*api.MessagePage, error) {
			return nil, errors.New("boom")
		},
	}
	cache := NewListCache(client, CacheOptions{})

	entries, err := cache.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Chat Aug 20, 2026", entries[0].DisplayTitle)
}

func TestReloadBlankSummaryIsIgnored(t *testing.T) {
	client := &fakeRosterAPI{
		listFn: func(ctx context.Context) (*api.SessionPage, error) {
			return &api.SessionPage{Sessions: []api.Session{sessionRow("s1", strPtr("   "))}}, nil
		},
		messagesFn: func(ctx context.Context, sessionID string) (*api.MessagePage, error) {
			return userMessagePage("my rising sign"), nil
		},
	}
	cache := NewListCache(client, CacheOptions{})

	entries, err := cache.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "My Rising Sign", entries[0].DisplayTitle)
}

func TestReloadSupersededReturnsNothing(t *testing.T) {
	started := make(chan struct{})
	client := &fakeRosterAPI{
		messagesFn: func(ctx context.Context, sessionID string) (*api.MessagePage, error) {
			return &api.MessagePage{}, nil
		},
	}
	var once sync.Once
	client.listFn = func(ctx context.Context) (*api.SessionPage, error) {
		var first bool
		once.Do(func() { first = true })
		if first {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &api.SessionPage{Sessions: []api.Session{sessionRow("s1", strPtr("Newer"))}}, nil
	}
	cache := NewListCache(client, CacheOptions{})

	results := make(chan []Entry, 1)
	errs := make(chan error, 1)
	go func() {
		entries, err := cache.Reload(context.Background())
		results <- entries
		errs <- err
	}()

	<-started
	entries, err := cache.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Newer", entries[0].DisplayTitle)

	// The superseded reload is dropped silently.
	assert.Nil(t, <-results)
	assert.NoError(t, <-errs)

	sessions := cache.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "Newer", sessions[0].DisplayTitle)
}

func TestUpdateTitleCorrectsRosterAndCache(t *testing.T) {
	client := &fakeRosterAPI{
		listFn: func(ctx context.Context) (*api.SessionPage, error) {
			return &api.SessionPage{Sessions: []api.Session{sessionRow("s1", strPtr("Old"))}}, nil
		},
	}
	cache := NewListCache(client, CacheOptions{})
	_, err := cache.Reload(context.Background())
	require.NoError(t, err)

	cache.UpdateTitle("s1", "Settled Title")

	assert.Equal(t, "Settled Title", cache.Sessions()[0].DisplayTitle)
	title, ok := cache.titles.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "Settled Title", title)
}

func TestCreatePrependsEntry(t *testing.T) {
	client := &fakeRosterAPI{
		listFn: func(ctx context.Context) (*api.SessionPage, error) {
			return &api.SessionPage{Sessions: []api.Session{sessionRow("older", strPtr("Older"))}}, nil
		},
		createFn: func(ctx context.Context) (*api.Session, error) {
			s := sessionRow("fresh", nil)
			return &s, nil
		},
	}
	cache := NewListCache(client, CacheOptions{})
	_, err := cache.Reload(context.Background())
	require.NoError(t, err)

	entry, err := cache.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", entry.ID)

	sessions := cache.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "fresh", sessions[0].ID)
	assert.Equal(t, "older", sessions[1].ID)
}

func TestRemoveDropsEntryAndTitle(t *testing.T) {
	client := &fakeRosterAPI{
		listFn: func(ctx context.Context) (*api.SessionPage, error) {
			return &api.SessionPage{Sessions: []api.Session{
				sessionRow("s1", strPtr("One")),
				sessionRow("s2", strPtr("Two")),
			}}, nil
		},
		deleteFn: func(ctx context.Context, sessionID string) error {
			assert.Equal(t, "s1", sessionID)
			return nil
		},
	}
	cache := NewListCache(client, CacheOptions{})
	_, err := cache.Reload(context.Background())
	require.NoError(t, err)

	require.NoError(t, cache.Remove(context.Background(), "s1"))

	sessions := cache.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "s2", sessions[0].ID)
	_, ok := cache.titles.Get("s1")
	assert.False(t, ok)
}

func TestRemoveServerErrorKeepsEntry(t *testing.T) {
	cause := errors.New("forbidden")
	client := &fakeRosterAPI{
		listFn: func(ctx context.Context) (*api.SessionPage, error) {
			return &api.SessionPage{Sessions: []api.Session{sessionRow("s1", strPtr("One"))}}, nil
		},
		deleteFn: func(ctx context.Context, sessionID string) error {
			return cause
		},
	}
	cache := NewListCache(client, CacheOptions{})
	_, err := cache.Reload(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, cache.Remove(context.Background(), "s1"), cause)
	assert.Len(t, cache.Sessions(), 1)
}
