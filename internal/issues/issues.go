// Package issues loads issue bodies from local files or the GitHub API.
package issues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// Feature: ISSUE_SOURCES
// Spec: spec/core/issues.md

// DefaultTimeout bounds a single GitHub API call.
const DefaultTimeout = 30 * time.Second

var (
	// ErrInvalidRef is returned for issue references that are neither a
	// number nor an issue URL.
	ErrInvalidRef = errors.New("invalid issue reference")
	// ErrNoRepo is returned when a bare issue number is given without
	// OWNER/REPO.
	ErrNoRepo = errors.New("repository required (OWNER/REPO)")
	// ErrNotObject is returned when issue JSON is not an object.
	ErrNotObject = errors.New("issue json must be an object")
)

// Issue is the subset of an issue the governance commands read.
type Issue struct {
	Number int
	Title  string
	Body   string
	URL    string
}

// Source yields one issue.
type Source interface {
	Fetch(ctx context.Context) (*Issue, error)
}

// FileSource reads a Markdown body from a file. A file holding a JSON object
// with a string "body" (the output of `gh issue view --json body,...`) is
// decoded instead.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(_ context.Context) (*Issue, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading issue body: %w", err)
	}
	var obj map[string]any
	if json.Unmarshal(data, &obj) == nil {
		if _, ok := obj["body"].(string); ok {
			return fromObject(obj), nil
		}
	}
	return &Issue{Body: string(data)}, nil
}

// JSONSource reads an issue JSON object; a missing body is empty.
type JSONSource struct {
	Path string
}

func (s JSONSource) Fetch(_ context.Context) (*Issue, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading issue json: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing issue json: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return fromObject(obj), nil
}

func fromObject(obj map[string]any) *Issue {
	is := &Issue{}
	is.Body, _ = obj["body"].(string)
	is.Title, _ = obj["title"].(string)
	is.URL, _ = obj["url"].(string)
	if n, ok := obj["number"].(float64); ok {
		is.Number = int(n)
	}
	return is
}

// NewGitHubClient returns an API client, authenticated when token is set.
func NewGitHubClient(ctx context.Context, token string) *gh.Client {
	if token == "" {
		return gh.NewClient(&http.Client{Timeout: DefaultTimeout})
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout
	return gh.NewClient(tc)
}

// GitHubSource fetches an issue through the REST API.
type GitHubSource struct {
	Client *gh.Client
	Owner  string
	Repo   string
	Number int
}

func (s GitHubSource) Fetch(ctx context.Context) (*Issue, error) {
	is, _, err := s.Client.Issues.Get(ctx, s.Owner, s.Repo, s.Number)
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil {
			return nil, fmt.Errorf("fetching issue %s/%s#%d: %d %s", s.Owner, s.Repo, s.Number, ghErr.Response.StatusCode, ghErr.Message)
		}
		return nil, fmt.Errorf("fetching issue %s/%s#%d: %w", s.Owner, s.Repo, s.Number, err)
	}
	return &Issue{
		Number: is.GetNumber(),
		Title:  is.GetTitle(),
		Body:   is.GetBody(),
		URL:    is.GetHTMLURL(),
	}, nil
}

// PullDiffer fetches pull request patches through the REST API.
type PullDiffer struct {
	Client *gh.Client
	Owner  string
	Repo   string
}

// Diff returns the unified diff of pull request number.
func (p PullDiffer) Diff(ctx context.Context, number int) (string, error) {
	diff, _, err := p.Client.PullRequests.GetRaw(ctx, p.Owner, p.Repo, number, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", fmt.Errorf("fetching diff of %s/%s#%d: %w", p.Owner, p.Repo, number, err)
	}
	return diff, nil
}

var issueURLRe = regexp.MustCompile(`^/([^/]+)/([^/]+)/(?:issues|pull)/(\d+)/?$`)

// ParseRef accepts "123", "#123" or an issue URL. A bare number takes its
// repository from defaultRepo (OWNER/REPO).
func ParseRef(ref, defaultRepo string) (owner, repo string, number int, err error) {
	ref = strings.TrimSpace(ref)
	if n, convErr := strconv.Atoi(strings.TrimPrefix(ref, "#")); convErr == nil {
		if n < 1 {
			return "", "", 0, fmt.Errorf("%w: %s", ErrInvalidRef, ref)
		}
		o, r, ok := strings.Cut(defaultRepo, "/")
		if !ok || o == "" || r == "" {
			return "", "", 0, ErrNoRepo
		}
		return o, r, n, nil
	}
	u, parseErr := url.Parse(ref)
	if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", 0, fmt.Errorf("%w: %s", ErrInvalidRef, ref)
	}
	m := issueURLRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", "", 0, fmt.Errorf("%w: %s", ErrInvalidRef, ref)
	}
	n, _ := strconv.Atoi(m[3])
	return m[1], m[2], n, nil
}
