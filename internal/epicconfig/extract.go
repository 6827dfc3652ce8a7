// Package epicconfig reads the technical decisions recorded in an Epic
// (tech stack, production quality requirements, API design) and turns them
// into project rule and skill documents.
package epicconfig

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/bartekus/sddgov/internal/mdsan"
)

// Feature: EPIC_PROJECT_CONFIG
// Spec: spec/core/epic-config.md

type Choice struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type TechStack struct {
	Language       *Choice             `json:"language"`
	Framework      *Choice             `json:"framework"`
	Database       *Choice             `json:"database"`
	Infrastructure *Choice             `json:"infrastructure"`
	Raw            []map[string]string `json:"raw"`
}

// HasChoices reports whether any category was selected.
func (t TechStack) HasChoices() bool {
	return t.Language != nil || t.Framework != nil || t.Database != nil || t.Infrastructure != nil
}

type Meta struct {
	PRDPath     string `json:"prd_path,omitempty"`
	CreatedDate string `json:"created_date,omitempty"`
	Status      string `json:"status,omitempty"`
}

type DataProtection struct {
	Type       string `json:"type"`
	Protection string `json:"protection"`
}

type SecurityDetails struct {
	AuthMethod     string           `json:"auth_method,omitempty"`
	AuthzModel     string           `json:"authz_model,omitempty"`
	PasswordHash   string           `json:"password_hash,omitempty"`
	PII            []DataProtection `json:"pii_list"`
	DataProtection []DataProtection `json:"data_protection"`
}

type PerformanceTarget struct {
	Operation string `json:"operation"`
	Target    string `json:"target"`
}

type PerformanceDetails struct {
	Targets     []PerformanceTarget `json:"targets"`
	Tool        string              `json:"tool,omitempty"`
	Environment string              `json:"environment,omitempty"`
}

type ObservabilityDetails struct {
	Output    string `json:"output,omitempty"`
	Format    string `json:"format,omitempty"`
	Retention string `json:"retention,omitempty"`
}

type AvailabilityDetails struct {
	Uptime string `json:"uptime,omitempty"`
	RTO    string `json:"rto,omitempty"`
	RPO    string `json:"rpo,omitempty"`
}

type Details struct {
	Security      *SecurityDetails      `json:"security,omitempty"`
	Performance   *PerformanceDetails   `json:"performance,omitempty"`
	Observability *ObservabilityDetails `json:"observability,omitempty"`
	Availability  *AvailabilityDetails  `json:"availability,omitempty"`
}

// Requirements are the production quality flags answered Yes in the PRD
// questions Q6-5 to Q6-8, carried into the Epic design sections.
type Requirements struct {
	Security      bool    `json:"security"`
	Performance   bool    `json:"performance"`
	Observability bool    `json:"observability"`
	Availability  bool    `json:"availability"`
	Details       Details `json:"details"`
}

type API struct {
	Endpoint    string `json:"endpoint"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// Config is everything extracted from one Epic.
type Config struct {
	EpicPath     string       `json:"epic_path"`
	Meta         Meta         `json:"meta"`
	TechStack    TechStack    `json:"tech_stack"`
	Requirements Requirements `json:"requirements"`
	APIDesign    []API        `json:"api_design"`
}

const apiPlaceholder = "[e.g. /api/users]"

var (
	techSectionRe = regexp.MustCompile(`(?i)^#{1,4}\s*3\.2\s+Technology selection`)
	apiSectionRe  = regexp.MustCompile(`(?i)^#{1,4}\s*3\.4\s+API design`)
	perfSectionRe = regexp.MustCompile(`(?i)^#{1,4}\s*5\.1\s+Performance design`)
	secSectionRe  = regexp.MustCompile(`(?i)^#{1,4}\s*5\.2\s+Security design`)
	obsSectionRe  = regexp.MustCompile(`(?i)^#{1,4}\s*5\.3\s+Observability design`)
	availSection  = regexp.MustCompile(`(?i)^#{1,4}\s*5\.4\s+Availability design`)
	anyHeadingRe  = regexp.MustCompile(`^#{1,4}\s`)

	prdRe     = regexp.MustCompile("PRD:\\s*`?([^`\\n]+)`?")
	createdRe = regexp.MustCompile(`Created:\s*(\d{4}-\d{2}-\d{2})`)
	statusRe  = regexp.MustCompile(`Status:\s*(Draft|Review|Approved)`)

	hashAlgoRe = regexp.MustCompile(`(bcrypt|argon2|scrypt|pbkdf2)`)
	piiWords   = []string{"email", "name", "address", "phone"}
)

// ExtractFile reads and extracts the Epic at path.
func ExtractFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("epic file not found: %s", path)
	}
	cfg := Extract(string(data))
	cfg.EpicPath = path
	return cfg, nil
}

// Extract parses Epic text. Fenced code and HTML comments are ignored, so
// template examples never leak into the result.
func Extract(text string) *Config {
	text = strings.ReplaceAll(mdsan.SanitizeKeepIndented(text), "\r\n", "\n")
	return &Config{
		Meta:         extractMeta(text),
		TechStack:    extractTechStack(text),
		Requirements: extractRequirements(text),
		APIDesign:    extractAPIs(text),
	}
}

// section returns the text from the heading matching re up to the next
// heading of level 1 to 4, trimmed.
func section(text string, re *regexp.Regexp) (string, bool) {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if !re.MatchString(l) {
			continue
		}
		end := len(lines)
		for j := i + 1; j < len(lines); j++ {
			if anyHeadingRe.MatchString(lines[j]) {
				end = j
				break
			}
		}
		return strings.TrimSpace(strings.Join(lines[i:end], "\n")), true
	}
	return "", false
}

// keyValueBlocks returns the "Key: value" lines following each "<prefix>-N"
// label line, one map per block.
func keyValueBlocks(text, prefix string) []map[string]string {
	labelRe := regexp.MustCompile(`^\s*(?:[-*]\s*)?` + regexp.QuoteMeta(prefix) + `-\d+\s*$`)
	var out []map[string]string
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		if !labelRe.MatchString(lines[i]) {
			continue
		}
		item := map[string]string{}
		for i+1 < len(lines) {
			k, v, ok := strings.Cut(strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(lines[i+1]), "-* ")), ": ")
			if !ok || strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
				break
			}
			item[strings.TrimSpace(k)] = strings.TrimSpace(v)
			i++
		}
		if len(item) > 0 {
			out = append(out, item)
		}
	}
	return out
}

// field returns the value after "label:" in text, without surrounding
// brackets.
func field(text, label string) string {
	re := regexp.MustCompile(regexp.QuoteMeta(label) + `:\s*\[?([^\]\n]+)\]?`)
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// listPairs returns "- key: value" bullets following a "label:" line.
func listPairs(text, label string) [][2]string {
	lines := strings.Split(text, "\n")
	var out [][2]string
	for i, l := range lines {
		if strings.TrimSpace(l) != label+":" {
			continue
		}
		for _, item := range lines[i+1:] {
			if !strings.HasPrefix(item, "- ") {
				break
			}
			k, v, ok := strings.Cut(strings.Trim(item, "- "), ": ")
			if ok {
				out = append(out, [2]string{strings.TrimSpace(k), strings.TrimSpace(v)})
			}
		}
		break
	}
	return out
}

func extractMeta(text string) Meta {
	var m Meta
	if g := prdRe.FindStringSubmatch(text); g != nil {
		m.PRDPath = strings.TrimSpace(g[1])
	}
	if g := createdRe.FindStringSubmatch(text); g != nil {
		m.CreatedDate = g[1]
	}
	if g := statusRe.FindStringSubmatch(text); g != nil {
		m.Status = g[1]
	}
	return m
}

func extractTechStack(text string) TechStack {
	ts := TechStack{Raw: []map[string]string{}}
	sec, ok := section(text, techSectionRe)
	if !ok {
		return ts
	}
	ts.Raw = keyValueBlocks(sec, "tech")
	for _, item := range ts.Raw {
		c := &Choice{Name: item["Choice"], Reason: item["Reason"]}
		switch strings.ToLower(item["Category"]) {
		case "language":
			ts.Language = c
		case "framework":
			ts.Framework = c
		case "database", "db":
			ts.Database = c
		case "infrastructure":
			ts.Infrastructure = c
		}
	}
	if ts.Raw == nil {
		ts.Raw = []map[string]string{}
	}
	return ts
}

// answeredYes reports whether sec carries "PRD Q6-n: Yes" on its own line.
func answeredYes(sec, question string) bool {
	re := regexp.MustCompile(`(?im)^PRD ` + regexp.QuoteMeta(question) + `:\s*(Yes|No)\s*$`)
	m := re.FindStringSubmatch(sec)
	return m != nil && strings.EqualFold(m[1], "yes")
}

func extractRequirements(text string) Requirements {
	var r Requirements
	if sec, ok := section(text, secSectionRe); ok && answeredYes(sec, "Q6-5") {
		r.Security = true
		r.Details.Security = securityDetails(sec)
	}
	if sec, ok := section(text, perfSectionRe); ok && answeredYes(sec, "Q6-7") {
		r.Performance = true
		r.Details.Performance = performanceDetails(sec)
	}
	if sec, ok := section(text, obsSectionRe); ok && answeredYes(sec, "Q6-6") {
		r.Observability = true
		r.Details.Observability = &ObservabilityDetails{
			Output:    field(sec, "Output"),
			Format:    field(sec, "Format"),
			Retention: field(sec, "Retention"),
		}
	}
	if sec, ok := section(text, availSection); ok && answeredYes(sec, "Q6-8") {
		r.Availability = true
		r.Details.Availability = &AvailabilityDetails{
			Uptime: field(sec, "Uptime"),
			RTO:    field(sec, "RTO"),
			RPO:    field(sec, "RPO"),
		}
	}
	return r
}

func securityDetails(sec string) *SecurityDetails {
	d := &SecurityDetails{
		AuthMethod:     field(sec, "Authentication"),
		AuthzModel:     field(sec, "Authorization model"),
		PII:            []DataProtection{},
		DataProtection: []DataProtection{},
	}
	for _, kv := range listPairs(sec, "Data handled") {
		dp := DataProtection{Type: kv[0], Protection: kv[1]}
		d.DataProtection = append(d.DataProtection, dp)
		kind := strings.ToLower(kv[0])
		if strings.Contains(kind, "password") {
			if m := hashAlgoRe.FindStringSubmatch(strings.ToLower(kv[1])); m != nil {
				d.PasswordHash = m[1]
			}
		}
		for _, w := range piiWords {
			if strings.Contains(kind, w) {
				d.PII = append(d.PII, dp)
				break
			}
		}
	}
	return d
}

func performanceDetails(sec string) *PerformanceDetails {
	d := &PerformanceDetails{
		Targets:     []PerformanceTarget{},
		Tool:        field(sec, "Tool"),
		Environment: field(sec, "Environment"),
	}
	for _, kv := range listPairs(sec, "Target operations") {
		d.Targets = append(d.Targets, PerformanceTarget{Operation: kv[0], Target: kv[1]})
	}
	return d
}

func extractAPIs(text string) []API {
	apis := []API{}
	sec, ok := section(text, apiSectionRe)
	if !ok {
		return apis
	}
	for _, item := range keyValueBlocks(sec, "api") {
		ep := item["Endpoint"]
		if ep == "" || ep == apiPlaceholder {
			continue
		}
		apis = append(apis, API{Endpoint: ep, Method: item["Method"], Description: item["Description"]})
	}
	return apis
}

// Rows returns one table row per selected category.
func (t TechStack) Rows() [][]string {
	var rows [][]string
	for _, c := range []struct {
		label  string
		choice *Choice
	}{
		{"Language", t.Language},
		{"Framework", t.Framework},
		{"Database", t.Database},
		{"Infrastructure", t.Infrastructure},
	} {
		if c.choice != nil {
			rows = append(rows, []string{c.label, c.choice.Name, c.choice.Reason})
		}
	}
	return rows
}

func (d SecurityDetails) ProtectionRows() [][]string {
	rows := make([][]string, 0, len(d.DataProtection))
	for _, p := range d.DataProtection {
		rows = append(rows, []string{p.Type, p.Protection})
	}
	return rows
}

func (d SecurityDetails) PIINames() []string {
	names := make([]string, 0, len(d.PII))
	for _, p := range d.PII {
		names = append(names, p.Type)
	}
	return names
}

func (d PerformanceDetails) TargetRows() [][]string {
	rows := make([][]string, 0, len(d.Targets))
	for _, t := range d.Targets {
		rows = append(rows, []string{t.Operation, t.Target})
	}
	return rows
}

func (c Config) APIRows() [][]string {
	rows := make([][]string, 0, len(c.APIDesign))
	for _, a := range c.APIDesign {
		rows = append(rows, []string{a.Method, a.Endpoint, a.Description})
	}
	return rows
}
