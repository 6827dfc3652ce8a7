package scanner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterFiles(t *testing.T) {
	tests := []struct {
		name     string
		paths    []string
		opts     FilterOptions
		expected []string
	}{
		{
			name:  "exclude local state dir",
			paths: []string{"docs/a.md", ".agentic-sdd/approvals/issue-1/estimate.md", "docs/b.md"},
			opts: FilterOptions{
				ExcludeDirs: DefaultExcludeDirs(),
			},
			expected: []string{"docs/a.md", "docs/b.md"},
		},
		{
			name:  "segment matching only",
			paths: []string{".github/x.md", "a/.git/y.md"},
			opts: FilterOptions{
				ExcludeDirs: []string{".git"},
			},
			expected: []string{".github/x.md"},
		},
		{
			name:  "extension filter",
			paths: []string{"a.md", "b.go", "c.md"},
			opts: FilterOptions{
				IncludeExtensions: []string{".md"},
			},
			expected: []string{"a.md", "c.md"},
		},
		{
			name:  "glob excludes file pattern",
			paths: []string{"docs/prd/_draft-x.md", "docs/prd/x.md"},
			opts: FilterOptions{
				ExcludeGlobs: []string{"**/_draft-*.md"},
			},
			expected: []string{"docs/prd/x.md"},
		},
		{
			name:  "glob excludes directory subtree",
			paths: []string{"docs/archive/2020/a.md", "docs/prd/a.md"},
			opts: FilterOptions{
				ExcludeGlobs: []string{"docs/archive"},
			},
			expected: []string{"docs/prd/a.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterFiles(tt.paths, tt.opts)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestValidateGlobs(t *testing.T) {
	require.NoError(t, ValidateGlobs([]string{"docs/**", "*.md"}))
	err := ValidateGlobs([]string{"docs/[a"})
	require.Error(t, err)
	var bad *BadPatternError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "docs/[a", bad.Pattern)
}

func TestWalk(t *testing.T) {
	dir := t.TempDir()
	createFile(t, dir, "docs/b.md")
	createFile(t, dir, "docs/a.md")
	createFile(t, dir, "docs/sub/c.md")
	createFile(t, dir, "docs/sub/c.txt")
	createFile(t, dir, "docs/.agentic-sdd/x.md")
	createFile(t, dir, "docs/archive/old.md")

	files, err := Walk(dir, "docs", MarkdownOptions([]string{"docs/archive"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.md", "docs/b.md", "docs/sub/c.md"}, files)

	files, err = Walk(dir, "docs/a.md", MarkdownOptions(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.md"}, files)

	_, err = Walk(dir, "missing", MarkdownOptions(nil))
	require.Error(t, err)
}

func TestUnderRoot(t *testing.T) {
	paths := []string{"docs/a.md", "docsx/b.md", "docs/sub/c.md", "README.md"}
	assert.Equal(t, []string{"docs/a.md", "docs/sub/c.md"}, UnderRoot(paths, "docs/"))
	assert.Len(t, UnderRoot(paths, "."), 4)
}

func TestScanner(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")

	createFile(t, dir, "docs/prd/a.md")
	createFile(t, dir, "docs/notes.txt")
	createFile(t, dir, ".gitignore", "ignored.md\n")
	createFile(t, dir, "ignored.md")
	createFile(t, dir, "README.md")

	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "Initial commit")

	createFile(t, dir, "docs/untracked.md")

	s := New(dir)

	tracked, err := s.TrackedFiles(ctx)
	require.NoError(t, err)
	assert.Contains(t, tracked, "docs/prd/a.md")
	assert.NotContains(t, tracked, "ignored.md")
	assert.NotContains(t, tracked, "docs/untracked.md")

	md, err := s.TrackedMarkdownFiles(ctx, "docs", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/prd/a.md"}, md)

	all, err := s.TrackedMarkdownFiles(ctx, ".", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "docs/prd/a.md"}, all)
}

func runGit(t *testing.T, dir string, args ...string) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\nOutput: %s", args, err, out)
	}
}

func createFile(t *testing.T, dir, path string, content ...string) {
	fullPath := filepath.Join(dir, path)
	err := os.MkdirAll(filepath.Dir(fullPath), 0755)
	require.NoError(t, err)

	data := ""
	if len(content) > 0 {
		data = content[0]
	}
	err = os.WriteFile(fullPath, []byte(data), 0644)
	require.NoError(t, err)
}
