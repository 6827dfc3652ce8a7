package issues

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "issue")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()

	is, err := FileSource{Path: writeTemp(t, "## Change targets\n- `a.go`\n")}.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "## Change targets\n- `a.go`\n", is.Body)

	is, err = FileSource{Path: writeTemp(t, `{"body":"from json","title":"T","number":7}`)}.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Issue{Number: 7, Title: "T", Body: "from json"}, is)

	is, err = FileSource{Path: writeTemp(t, `{"title":"no body"}`)}.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"no body"}`, is.Body, "JSON without a string body is taken verbatim")

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing")}.Fetch(ctx)
	require.Error(t, err)
}

func TestJSONSource(t *testing.T) {
	ctx := context.Background()

	is, err := JSONSource{Path: writeTemp(t, `{"body":null,"url":"https://github.com/o/r/issues/1"}`)}.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", is.Body)
	assert.Equal(t, "https://github.com/o/r/issues/1", is.URL)

	_, err = JSONSource{Path: writeTemp(t, `[1]`)}.Fetch(ctx)
	require.ErrorIs(t, err, ErrNotObject)

	_, err = JSONSource{Path: writeTemp(t, `{`)}.Fetch(ctx)
	require.ErrorContains(t, err, "parsing issue json")
}

func TestGitHubSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"number":42,"title":"Add cache","body":"- PRD: docs/prd/cache.md","html_url":"https://github.com/acme/widgets/issues/42"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/issues/43", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	client := NewGitHubClient(ctx, "secret")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	is, err := GitHubSource{Client: client, Owner: "acme", Repo: "widgets", Number: 42}.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Issue{
		Number: 42,
		Title:  "Add cache",
		Body:   "- PRD: docs/prd/cache.md",
		URL:    "https://github.com/acme/widgets/issues/42",
	}, is)

	_, err = GitHubSource{Client: client, Owner: "acme", Repo: "widgets", Number: 43}.Fetch(ctx)
	require.ErrorContains(t, err, "fetching issue acme/widgets#43: 404 Not Found")
}

func TestPullDiffer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/9", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "diff")
		fmt.Fprint(w, "diff --git a/x b/x\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewGitHubClient(context.Background(), "")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	diff, err := PullDiffer{Client: client, Owner: "acme", Repo: "widgets"}.Diff(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "diff --git a/x b/x\n", diff)
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref, repo   string
		owner, name string
		number      int
		wantErr     error
	}{
		{ref: "12", repo: "acme/widgets", owner: "acme", name: "widgets", number: 12},
		{ref: "#12", repo: "acme/widgets", owner: "acme", name: "widgets", number: 12},
		{ref: "https://github.com/o/r/issues/5", owner: "o", name: "r", number: 5},
		{ref: "https://github.com/o/r/pull/6/", owner: "o", name: "r", number: 6},
		{ref: "12", wantErr: ErrNoRepo},
		{ref: "0", repo: "a/b", wantErr: ErrInvalidRef},
		{ref: "https://github.com/o/r", wantErr: ErrInvalidRef},
		{ref: "issue-12", wantErr: ErrInvalidRef},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			owner, name, n, err := ParseRef(tt.ref, tt.repo)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []any{tt.owner, tt.name, tt.number}, []any{owner, name, n})
		})
	}
}
