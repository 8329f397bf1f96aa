package rod

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout-agent/internal/domain/entity"
	"scout-agent/internal/infrastructure/logger"
)

const (
	indexHTML = `<!DOCTYPE html>
<html><head><title>University</title></head>
<body>
	<a href="/catalog">Course catalog</a>
	<a href="/news" target="_blank">News</a>
	<input id="q" type="text" placeholder="Search" />
</body></html>`

	catalogHTML = `<!DOCTYPE html>
<html><head><title>Catalog</title></head>
<body><table>
	<tr><td>Algorithms</td><td>6</td></tr>
	<tr><td>Databases</td><td>5</td></tr>
</table></body></html>`
)

// openSession launches a real browser. These tests run only when SCOUT_BROWSER_TESTS is set.
func openSession(t *testing.T) (*Session, *httptest.Server) {
	t.Helper()
	if os.Getenv("SCOUT_BROWSER_TESTS") == "" {
		t.Skip("set SCOUT_BROWSER_TESTS=1 to run browser tests")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, indexHTML) })
	mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, catalogHTML) })
	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "<body>news</body>") })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.NoSandbox = true
	cfg.Screenshots = false
	s, err := NewFactory(cfg, logger.NewNopLogger()).Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.(*Session), srv
}

func labelIndex(t *testing.T, snap *entity.Snapshot, label string) int {
	t.Helper()
	for _, e := range snap.Elements {
		if strings.HasPrefix(e.Label, label) {
			return e.Index
		}
	}
	t.Fatalf("no element labelled %q in %+v", label, snap.Elements)
	return 0
}

func TestSession_NavigateClickExtract(t *testing.T) {
	s, srv := openSession(t)
	ctx := context.Background()

	snap, err := s.Execute(ctx, entity.Action{Kind: entity.ActionNavigate, URL: srv.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, "University", snap.Title)
	require.Len(t, snap.Tabs, 1)

	snap, err = s.Execute(ctx, entity.Action{Kind: entity.ActionClick, Index: labelIndex(t, snap, "Course catalog")})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/catalog", snap.URL)

	snap, err = s.Execute(ctx, entity.Action{Kind: entity.ActionExtract, Goal: "courses"})
	require.NoError(t, err)
	assert.Contains(t, snap.Content, "Algorithms | 6")

	snap, err = s.Execute(ctx, entity.Action{Kind: entity.ActionGoBack})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/", snap.URL)
}

func TestSession_RecoverableErrorsBecomeNotes(t *testing.T) {
	s, srv := openSession(t)
	ctx := context.Background()

	_, err := s.Execute(ctx, entity.Action{Kind: entity.ActionNavigate, URL: srv.URL + "/"})
	require.NoError(t, err)

	snap, err := s.Execute(ctx, entity.Action{Kind: entity.ActionClick, Index: 999})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(snap.Note, "Error:"), snap.Note)

	snap, err = s.Execute(ctx, entity.Action{Kind: entity.ActionNavigate, URL: "/relative"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(snap.Note, "Error:"), snap.Note)

	snap, err = s.Execute(ctx, entity.Action{Kind: entity.ActionSwitchTab, TabID: 7})
	require.NoError(t, err)
	assert.Contains(t, snap.Note, "tab 7 does not exist")
}

func TestSession_Tabs(t *testing.T) {
	s, srv := openSession(t)
	ctx := context.Background()

	snap, err := s.Execute(ctx, entity.Action{Kind: entity.ActionOpenTab, URL: srv.URL + "/catalog"})
	require.NoError(t, err)
	require.Len(t, snap.Tabs, 2)
	assert.True(t, snap.Tabs[1].Active)

	snap, err = s.Execute(ctx, entity.Action{Kind: entity.ActionSwitchTab, TabID: 1})
	require.NoError(t, err)
	assert.True(t, snap.Tabs[0].Active)
}

func TestSession_ClosedIsUnavailable(t *testing.T) {
	s, _ := openSession(t)
	require.NoError(t, s.Close())

	_, err := s.Observe(context.Background())
	assert.ErrorIs(t, err, entity.ErrExecutorUnavailable)
	assert.NoError(t, s.Close())
}
