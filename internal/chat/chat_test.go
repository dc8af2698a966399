package chat

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralume/astra/internal/api"
	"github.com/astralume/astra/internal/engine"
	"github.com/astralume/astra/internal/session"
	"github.com/astralume/astra/internal/stream"
)

// fakeBackend serves both the chat and roster interfaces in tests
type fakeBackend struct {
	deleted []string
}

func (f *fakeBackend) StreamChat(ctx context.Context, message, sessionID string) (stream.EventStream, error) {
	ch := make(chan stream.Event, 4)
	ch <- stream.SessionEvent{SessionID: "sess-1"}
	ch <- stream.TextChunk{Content: "The stars "}
	ch <- stream.TextChunk{Content: "align."}
	ch <- stream.Done{}
	close(ch)
	return ch, nil
}

func (f *fakeBackend) SessionMessages(ctx context.Context, sessionID string, limit, offset int) (*api.MessagePage, error) {
	return &api.MessagePage{
		Messages: []api.SessionMessage{
			{ID: "m1", Role: "user", Content: "tell me about love", CreatedAt: time.Now()},
			{ID: "m2", Role: "assistant", Content: "Venus is busy.", CreatedAt: time.Now()},
		},
		Session: api.SessionInfo{ID: sessionID, Title: "Love Questions"},
	}, nil
}

func (f *fakeBackend) ListSessions(ctx context.Context, limit, offset int) (*api.SessionPage, error) {
	summary := "Love Questions"
	return &api.SessionPage{Sessions: []api.Session{
		{ID: "roster-1", CreatedAt: time.Now(), LastMessageAt: time.Now(), MessageCount: 2, Summary: &summary},
	}}, nil
}

func (f *fakeBackend) CreateSession(ctx context.Context) (*api.Session, error) {
	return &api.Session{ID: "created", CreatedAt: time.Now()}, nil
}

func (f *fakeBackend) DeleteSession(ctx context.Context, sessionID string) error {
	f.deleted = append(f.deleted, sessionID)
	return nil
}

func newTestSession(t *testing.T, backend *fakeBackend, inputs []string) (*Session, *bytes.Buffer, *engine.Engine) {
	t.Helper()
	var out bytes.Buffer
	eng := engine.NewEngine(backend, engine.Options{
		Renderer: NewTerminalRenderer(&out, false, false),
	})
	roster := session.NewListCache(backend, session.CacheOptions{})
	s := NewSession(eng, roster, SessionOptions{
		Reader: NewMockInputReader(inputs),
		Out:    &out,
	})
	return s, &out, eng
}

func TestRunExitCommand(t *testing.T) {
	s, out, _ := newTestSession(t, &fakeBackend{}, []string{"exit"})
	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, out.String(), "Goodbye")
}

func TestRunEndsOnInputEOF(t *testing.T) {
	s, _, _ := newTestSession(t, &fakeBackend{}, nil)
	require.NoError(t, s.Run(context.Background()))
}

func TestRunStreamsAnswer(t *testing.T) {
	s, out, eng := newTestSession(t, &fakeBackend{}, []string{"what do the stars say", "exit"})
	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, out.String(), "The stars align.")
	assert.Equal(t, "sess-1", eng.SessionID())

	messages := eng.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, engine.StatusComplete, messages[1].Status)
}

func TestRunListsSessions(t *testing.T) {
	s, out, _ := newTestSession(t, &fakeBackend{}, []string{"/sessions", "exit"})
	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, out.String(), "Love Questions")
	assert.Contains(t, out.String(), "roster-1")
}

func TestRunResumeByNumber(t *testing.T) {
	s, out, eng := newTestSession(t, &fakeBackend{}, []string{"/sessions", "/resume 1", "exit"})
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, "roster-1", eng.SessionID())
	assert.Contains(t, out.String(), "Resumed: Love Questions")
	assert.Contains(t, out.String(), "Venus is busy.")
}

func TestRunResumeRequiresArgument(t *testing.T) {
	s, out, _ := newTestSession(t, &fakeBackend{}, []string{"/resume", "exit"})
	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, out.String(), "usage: /resume")
}

func TestRunDeleteClearsOpenSession(t *testing.T) {
	backend := &fakeBackend{}
	s, _, eng := newTestSession(t, backend, []string{"/sessions", "/resume roster-1", "/delete roster-1", "exit"})
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []string{"roster-1"}, backend.deleted)
	assert.Empty(t, eng.SessionID())
	assert.Empty(t, eng.Messages())
}

func TestRunNewStartsFreshConversation(t *testing.T) {
	s, out, eng := newTestSession(t, &fakeBackend{}, []string{"hello there", "/new", "exit"})
	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, out.String(), "new conversation")
	assert.Empty(t, eng.Messages())
	assert.Empty(t, eng.SessionID())
}

func TestRunUnknownCommand(t *testing.T) {
	s, out, _ := newTestSession(t, &fakeBackend{}, []string{"/teleport", "exit"})
	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, out.String(), "unknown command /teleport")
}

func TestProcessMessageSingleTurn(t *testing.T) {
	s, out, eng := newTestSession(t, &fakeBackend{}, nil)
	require.NoError(t, s.ProcessMessage(context.Background(), "one shot"))

	assert.Contains(t, out.String(), "The stars align.")
	assert.Equal(t, "sess-1", eng.SessionID())
}
