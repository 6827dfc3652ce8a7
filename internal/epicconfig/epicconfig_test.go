package epicconfig

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/sddgov/internal/projection"
)

const epic = "# Epic: Cache\n\n" +
	"- PRD: `docs/prd/cache.md`\n- Created: 2026-01-15\n- Status: Approved\n\n" +
	"<!-- Status: Draft -->\n\n" +
	"## 3. Technical design\n\n" +
	"### 3.2 Technology selection\n\n" +
	"tech-1\nCategory: Language\nChoice: Go\nReason: team skills\n\n" +
	"- tech-2\nCategory: DB\nChoice: PostgreSQL\nReason: relational data\n\n" +
	"### 3.4 API design\n\n" +
	"```text\napi-9\nEndpoint: /fenced\n```\n\n" +
	"api-1\nEndpoint: /api/items\nMethod: GET\nDescription: list items\n\n" +
	"api-2\nEndpoint: [e.g. /api/users]\nMethod: POST\n\n" +
	"## 5. Production quality\n\n" +
	"### 5.1 Performance design\n\nPRD Q6-7: Yes\n\n" +
	"Target operations:\n- List items: p95 < 200ms\n- Create item: p95 < 300ms\n\nTool: k6\nEnvironment: staging\n\n" +
	"### 5.2 Security design (required when Q6-5 is Yes)\n\nPRD Q6-5: Yes\n\n" +
	"Authentication: [OIDC]\nAuthorization model: RBAC\n\n" +
	"Data handled:\n- Email address: encrypted at rest\n- Password: bcrypt hash\n- Order total: none\n\n" +
	"### 5.3 Observability design\n\nPRD Q6-6: No\nOutput: stdout\n\n" +
	"### 5.4 Availability design\n\nPRD Q6-8: yes\nUptime: 99.9%\nRTO: 1h\nRPO: [15m]\n"

func extracted() *Config {
	cfg := Extract(epic)
	cfg.EpicPath = "docs/epics/cache.md"
	return cfg
}

func TestExtract(t *testing.T) {
	cfg := extracted()

	assert.Equal(t, Meta{PRDPath: "docs/prd/cache.md", CreatedDate: "2026-01-15", Status: "Approved"}, cfg.Meta)

	assert.Equal(t, &Choice{Name: "Go", Reason: "team skills"}, cfg.TechStack.Language)
	assert.Equal(t, &Choice{Name: "PostgreSQL", Reason: "relational data"}, cfg.TechStack.Database)
	assert.Nil(t, cfg.TechStack.Framework)
	assert.Len(t, cfg.TechStack.Raw, 2)

	assert.Equal(t, []API{{Endpoint: "/api/items", Method: "GET", Description: "list items"}}, cfg.APIDesign)

	r := cfg.Requirements
	assert.True(t, r.Security)
	assert.True(t, r.Performance)
	assert.False(t, r.Observability)
	assert.True(t, r.Availability)
	assert.Nil(t, r.Details.Observability)
	assert.Equal(t, &SecurityDetails{
		AuthMethod:   "OIDC",
		AuthzModel:   "RBAC",
		PasswordHash: "bcrypt",
		PII:          []DataProtection{{Type: "Email address", Protection: "encrypted at rest"}},
		DataProtection: []DataProtection{
			{Type: "Email address", Protection: "encrypted at rest"},
			{Type: "Password", Protection: "bcrypt hash"},
			{Type: "Order total", Protection: "none"},
		},
	}, r.Details.Security)
	assert.Equal(t, &PerformanceDetails{
		Targets: []PerformanceTarget{
			{Operation: "List items", Target: "p95 < 200ms"},
			{Operation: "Create item", Target: "p95 < 300ms"},
		},
		Tool:        "k6",
		Environment: "staging",
	}, r.Details.Performance)
	assert.Equal(t, &AvailabilityDetails{Uptime: "99.9%", RTO: "1h", RPO: "15m"}, r.Details.Availability)
}

func TestExtract_Empty(t *testing.T) {
	cfg := Extract("# Epic\n")
	assert.False(t, cfg.TechStack.HasChoices())
	assert.NotNil(t, cfg.TechStack.Raw)
	assert.NotNil(t, cfg.APIDesign)
	assert.Equal(t, Requirements{}, cfg.Requirements)
}

func fixedNow() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

func TestGenerate(t *testing.T) {
	out := t.TempDir()
	res, err := Generate(extracted(), Options{OutputDir: out, Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, []string{"tech-stack.md"}, res.GeneratedSkills)
	assert.Equal(t, []string{"security.md", "performance.md", "api-conventions.md"}, res.GeneratedRules)
	assert.Equal(t, []string{
		filepath.Join(out, "config.json"),
		filepath.Join(out, "skills", "tech-stack.md"),
		filepath.Join(out, "rules", "security.md"),
		filepath.Join(out, "rules", "performance.md"),
		filepath.Join(out, "rules", "api-conventions.md"),
	}, res.GeneratedFiles)

	read := func(rel string) string {
		data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
		require.NoError(t, err)
		return string(data)
	}

	assert.Equal(t, "# Tech stack\n\nSource: docs/epics/cache.md (PRD: docs/prd/cache.md)\n\n"+
		"Follow these choices when implementing. Changing one requires a new decision record.\n\n"+
		"| Category | Choice | Reason |\n| --- | --- | --- |\n"+
		"| Language | Go | team skills |\n| Database | PostgreSQL | relational data |\n", read("skills/tech-stack.md"))

	assert.Equal(t, "# API conventions\n\nSource: docs/epics/cache.md (PRD: docs/prd/cache.md)\n\n"+
		"New endpoints follow the shape of the ones below. Keep this list in sync with the Epic.\n\n"+
		"| Method | Endpoint | Description |\n| --- | --- | --- |\n| GET | /api/items | list items |\n", read("rules/api-conventions.md"))

	security := read("rules/security.md")
	assert.Contains(t, security, "## Authentication\n\n- Method: OIDC\n- Authorization model: RBAC\n- Passwords are hashed with bcrypt;")
	assert.Contains(t, security, "| Password | bcrypt hash |\n")
	assert.Contains(t, security, "## PII\n\n- Email address\n")

	assert.Contains(t, read("rules/performance.md"), "| List items | p95 < 200ms |\n")

	cfgJSON := read("config.json")
	assert.Contains(t, cfgJSON, `"generated_at": "2026-03-04T05:06:07Z"`)
	assert.Contains(t, cfgJSON, `"generated_rules": [`)
}

func TestGenerate_DryRunAndCustomTemplates(t *testing.T) {
	out := filepath.Join(t.TempDir(), "project")
	res, err := Generate(extracted(), Options{OutputDir: out, DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, res.GeneratedFiles)
	assert.Len(t, res.GeneratedRules, 3)
	assert.NoDirExists(t, out)

	cfg := &Config{EpicPath: "e.md", TechStack: TechStack{Language: &Choice{Name: "Go"}}}
	tmpl := fstest.MapFS{"skills/tech-stack.md.tmpl": {Data: []byte("custom {{.EpicPath}}")}}
	res, err = Generate(cfg, Options{OutputDir: out, Templates: tmpl, Now: fixedNow})
	require.NoError(t, err)
	assert.Empty(t, res.GeneratedRules)
	data, err := os.ReadFile(filepath.Join(out, "skills", "tech-stack.md"))
	require.NoError(t, err)
	assert.Equal(t, "custom e.md\n", string(data))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")
	require.NoError(t, projection.WriteJSON(p, extracted()))
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "docs/epics/cache.md", cfg.EpicPath)
	assert.True(t, cfg.Requirements.Security)

	md := filepath.Join(dir, "epic.md")
	require.NoError(t, os.WriteFile(md, []byte(epic), 0o644))
	cfg, err = LoadConfig(md)
	require.NoError(t, err)
	assert.Equal(t, md, cfg.EpicPath)

	_, err = LoadConfig(filepath.Join(dir, "epic.txt"))
	require.ErrorContains(t, err, "unsupported file type")
}
