package epicconfig

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/bartekus/sddgov/internal/projection"
)

//go:embed templates
var embedded embed.FS

// DefaultOutputDir is where generated files go unless overridden.
const DefaultOutputDir = ".agentic-sdd/project"

// Options control Generate.
type Options struct {
	OutputDir string
	// Templates overrides the built-in templates. It must hold the same
	// file names under rules/ and skills/.
	Templates fs.FS
	DryRun    bool
	Now       func() time.Time
}

// Result lists what was (or, in a dry run, would be) generated.
type Result struct {
	OutputDir       string   `json:"output_dir"`
	GeneratedSkills []string `json:"generated_skills"`
	GeneratedRules  []string `json:"generated_rules"`
	GeneratedFiles  []string `json:"generated_files"`
}

// LoadConfig reads a config previously written by `epic config`, or
// extracts one when path is an Epic Markdown file.
func LoadConfig(path string) (*Config, error) {
	switch filepath.Ext(path) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		var cfg Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return &cfg, nil
	case ".md":
		return ExtractFile(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %q", filepath.Ext(path))
	}
}

var funcs = template.FuncMap{
	"header": projection.RenderHeader,
	"table":  projection.RenderTable,
	"list":   projection.RenderList,
	"row":    func(cells ...string) []string { return cells },
	"orNA": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "N/A"
		}
		return s
	},
}

type doc struct {
	name string // relative to OutputDir
	kind string // "skill" or "rule"
	when func(*Config) bool
}

var docs = []doc{
	{"skills/tech-stack.md", "skill", func(c *Config) bool { return c.TechStack.HasChoices() }},
	{"rules/security.md", "rule", func(c *Config) bool { return c.Requirements.Security }},
	{"rules/performance.md", "rule", func(c *Config) bool { return c.Requirements.Performance }},
	{"rules/api-conventions.md", "rule", func(c *Config) bool { return len(c.APIDesign) > 0 }},
}

// Generate renders the project skills and rules cfg calls for, then
// config.json listing them.
func Generate(cfg *Config, opts Options) (*Result, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	tfs := opts.Templates
	if tfs == nil {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, err
		}
		tfs = sub
	}

	res := &Result{
		OutputDir:       opts.OutputDir,
		GeneratedSkills: []string{},
		GeneratedRules:  []string{},
		GeneratedFiles:  []string{},
	}
	for _, d := range docs {
		if !d.when(cfg) {
			continue
		}
		if d.kind == "skill" {
			res.GeneratedSkills = append(res.GeneratedSkills, path.Base(d.name))
		} else {
			res.GeneratedRules = append(res.GeneratedRules, path.Base(d.name))
		}
		if opts.DryRun {
			continue
		}
		out, err := render(tfs, d.name+".tmpl", cfg)
		if err != nil {
			return nil, err
		}
		dst := filepath.Join(opts.OutputDir, filepath.FromSlash(d.name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, err
		}
		if err := projection.AtomicWrite(dst, out); err != nil {
			return nil, err
		}
		res.GeneratedFiles = append(res.GeneratedFiles, dst)
	}
	if opts.DryRun {
		return res, nil
	}

	project := map[string]any{
		"version":          1,
		"epic_path":        cfg.EpicPath,
		"prd_path":         cfg.Meta.PRDPath,
		"generated_at":     opts.Now().UTC().Format(time.RFC3339),
		"tech_stack":       cfg.TechStack,
		"requirements":     cfg.Requirements,
		"generated_skills": res.GeneratedSkills,
		"generated_rules":  res.GeneratedRules,
	}
	dst := filepath.Join(opts.OutputDir, "config.json")
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, err
	}
	if err := projection.WriteJSON(dst, project); err != nil {
		return nil, err
	}
	res.GeneratedFiles = append([]string{dst}, res.GeneratedFiles...)
	return res, nil
}

func render(tfs fs.FS, name string, cfg *Config) ([]byte, error) {
	t, err := template.New(path.Base(name)).Funcs(funcs).ParseFS(tfs, name)
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", name, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, cfg); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	return []byte(strings.TrimRight(b.String(), "\n") + "\n"), nil
}

// WriteSummary prints the human-readable form of r.
func WriteSummary(w io.Writer, r *Result, dryRun bool) {
	var b strings.Builder
	if dryRun {
		b.WriteString("=== Dry run: files to generate ===\n")
	} else {
		b.WriteString("=== Generated ===\n")
	}
	fmt.Fprintf(&b, "\nOutput directory: %s\n", r.OutputDir)
	if len(r.GeneratedSkills) > 0 {
		b.WriteString("\nSkills:\n")
		for _, s := range r.GeneratedSkills {
			fmt.Fprintf(&b, "  - skills/%s\n", s)
		}
	}
	if len(r.GeneratedRules) > 0 {
		b.WriteString("\nRules:\n")
		for _, s := range r.GeneratedRules {
			fmt.Fprintf(&b, "  - rules/%s\n", s)
		}
	}
	if !dryRun {
		b.WriteString("\nFiles:\n")
		for _, f := range r.GeneratedFiles {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}
	_, _ = io.WriteString(w, b.String())
}
