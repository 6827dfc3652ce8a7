// SPDX-License-Identifier: AGPL-3.0-or-later

// Package approval binds an implementation mode to a hashed estimate
// snapshot. A record is written once per issue and later re-validated; any
// change to the estimate after approval is drift and blocks the gate.
package approval

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bartekus/sddgov/internal/projection"
)

// Feature: APPROVAL_GATE
// Spec: spec/gates/approval.md

const (
	SchemaVersion = 1

	RecordFile   = "approval.json"
	EstimateFile = "estimate.md"

	// TimestampLayout is the only accepted approved_at shape (UTC, seconds).
	TimestampLayout = "2006-01-02T15:04:05Z"

	DefaultApprover = "user"
)

// Modes lists the accepted implementation modes, sorted.
var Modes = []string{"custom", "impl", "tdd"}

var (
	// ErrInvalid marks a record that does not satisfy the closed schema.
	ErrInvalid = errors.New("invalid approval.json")
	// ErrExists is returned by Create when a record exists and Force is unset.
	ErrExists = errors.New("approval record already exists")
	// ErrMissingEstimate is returned when the estimate snapshot is absent.
	ErrMissingEstimate = errors.New("missing estimate snapshot file")
	// ErrUsage marks invalid Create options.
	ErrUsage = errors.New("invalid approval options")

	timestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)
	hashRe      = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)
)

var (
	requiredKeys = []string{"approved_at", "approver", "issue_number", "mode", "schema_version"}
	hashKeys     = []string{"estimate_hash", "estimate_sha256"}
)

// Record is a validated approval record.
type Record struct {
	SchemaVersion int
	IssueNumber   int
	Mode          string
	ApprovedAt    string
	Approver      string
	// HashField is the key the hash was read from; estimate_sha256 is a
	// legacy alias of estimate_hash.
	HashField    string
	EstimateHash string
}

// Dir returns the approval directory for an issue under stateDir.
func Dir(repoRoot, stateDir string, issue int) string {
	return filepath.Join(repoRoot, filepath.FromSlash(stateDir), "approvals", "issue-"+strconv.Itoa(issue))
}

// NormalizeForHash converts CRLF and lone CR to LF and guarantees a trailing
// newline, so equivalent snapshots hash the same on every platform.
func NormalizeForHash(text string) []byte {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return []byte(text)
}

// HashEstimate returns "sha256:<hex>" of the normalized estimate text.
func HashEstimate(text string) string {
	sum := sha256.Sum256(NormalizeForHash(text))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// ReadEstimate loads estimate.md as UTF-8 text.
func ReadEstimate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("failed to read %s (utf-8 required)", filepath.Base(path))
	}
	return string(data), nil
}

// CreateOptions configures Create.
type CreateOptions struct {
	StateDir   string
	Issue      int
	Mode       string
	Approver   string
	ApprovedAt string
	Force      bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Create hashes the issue's estimate snapshot and writes approval.json with
// sorted keys. It returns the written path.
func Create(repoRoot string, opts CreateOptions) (string, error) {
	if opts.Issue < 0 {
		return "", fmt.Errorf("%w: issue number must be >= 0", ErrUsage)
	}
	if !validMode(opts.Mode) {
		return "", fmt.Errorf("%w: invalid mode %q (expected one of %s)", ErrUsage, opts.Mode, strings.Join(Modes, ", "))
	}
	approvedAt := strings.TrimSpace(opts.ApprovedAt)
	if approvedAt == "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		approvedAt = now().UTC().Format(TimestampLayout)
	}
	if !timestampRe.MatchString(approvedAt) {
		return "", fmt.Errorf("%w: invalid approved-at (expected format: YYYY-MM-DDTHH:mm:ssZ)", ErrUsage)
	}
	approver := opts.Approver
	if approver == "" {
		approver = DefaultApprover
	}

	dir := Dir(repoRoot, opts.StateDir, opts.Issue)
	estimatePath := filepath.Join(dir, EstimateFile)
	recordPath := filepath.Join(dir, RecordFile)

	if !isFile(estimatePath) {
		return "", fmt.Errorf("%w: %s", ErrMissingEstimate, estimatePath)
	}
	text, err := ReadEstimate(estimatePath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(recordPath); err == nil && !opts.Force {
		return "", fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, recordPath)
	}

	record := map[string]any{
		"schema_version": SchemaVersion,
		"issue_number":   opts.Issue,
		"mode":           opts.Mode,
		"approved_at":    approvedAt,
		"estimate_hash":  HashEstimate(text),
		"approver":       approver,
	}
	if err := projection.WriteJSON(recordPath, record); err != nil {
		return "", fmt.Errorf("failed to write approval.json: %w", err)
	}
	return recordPath, nil
}

// Decode parses and validates a record against the closed key set. The
// issue number is not compared here; see Validate.
func Decode(data []byte) (Record, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Record{}, fmt.Errorf("%w: invalid JSON: %v", ErrInvalid, err)
	}
	if raw == nil {
		return Record{}, fmt.Errorf("%w: approval.json must be a JSON object", ErrInvalid)
	}

	var missing []string
	for _, k := range requiredKeys {
		if _, ok := raw[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Record{}, fmt.Errorf("%w: missing keys: %s", ErrInvalid, strings.Join(missing, ", "))
	}

	field, hash, err := pickHash(raw)
	if err != nil {
		return Record{}, err
	}

	var extra []string
	for k := range raw {
		if !contains(requiredKeys, k) && !contains(hashKeys, k) {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return Record{}, fmt.Errorf("%w: unexpected keys: %s", ErrInvalid, strings.Join(extra, ", "))
	}

	rec := Record{HashField: field, EstimateHash: hash}
	if v, ok := intValue(raw["schema_version"]); !ok || v != SchemaVersion {
		return Record{}, fmt.Errorf("%w: schema_version must be %d", ErrInvalid, SchemaVersion)
	}
	rec.SchemaVersion = SchemaVersion

	n, ok := intValue(raw["issue_number"])
	if !ok {
		return Record{}, fmt.Errorf("%w: issue_number must be an integer", ErrInvalid)
	}
	rec.IssueNumber = n

	if rec.Mode, ok = stringValue(raw["mode"]); !ok || !validMode(rec.Mode) {
		return Record{}, fmt.Errorf("%w: mode must be one of %s", ErrInvalid, strings.Join(Modes, ", "))
	}
	if rec.ApprovedAt, ok = stringValue(raw["approved_at"]); !ok || rec.ApprovedAt == "" {
		return Record{}, fmt.Errorf("%w: approved_at must be a non-empty string", ErrInvalid)
	}
	if !timestampRe.MatchString(rec.ApprovedAt) {
		return Record{}, fmt.Errorf("%w: approved_at must be ISO 8601 UTC timestamp like YYYY-MM-DDTHH:mm:ssZ", ErrInvalid)
	}
	if rec.Approver, ok = stringValue(raw["approver"]); !ok || rec.Approver == "" {
		return Record{}, fmt.Errorf("%w: approver must be a non-empty string", ErrInvalid)
	}
	if !hashRe.MatchString(rec.EstimateHash) {
		return Record{}, fmt.Errorf("%w: %s must be 'sha256:<64 lowercase hex>'", ErrInvalid, rec.HashField)
	}
	return rec, nil
}

func pickHash(raw map[string]json.RawMessage) (string, string, error) {
	h, hasHash := raw["estimate_hash"]
	s, hasSHA := raw["estimate_sha256"]
	switch {
	case !hasHash && !hasSHA:
		return "", "", fmt.Errorf("%w: missing estimate_hash (or estimate_sha256)", ErrInvalid)
	case hasHash && hasSHA && !bytes.Equal(bytes.TrimSpace(h), bytes.TrimSpace(s)):
		return "", "", fmt.Errorf("%w: approval.json has both estimate_hash and estimate_sha256 but they differ", ErrInvalid)
	}
	field, msg := "estimate_hash", h
	if !hasHash {
		field, msg = "estimate_sha256", s
	}
	v, ok := stringValue(msg)
	if !ok || v == "" {
		return "", "", fmt.Errorf("%w: estimate_hash must be a non-empty string", ErrInvalid)
	}
	return field, v, nil
}

// Validate checks the record belongs to the expected issue.
func (r Record) Validate(issue int) error {
	if r.IssueNumber != issue {
		return fmt.Errorf("%w: issue_number mismatch: expected %d, got %d", ErrInvalid, issue, r.IssueNumber)
	}
	return nil
}

// DriftError reports an estimate that changed after approval.
type DriftError struct {
	Issue    int
	Mode     string
	Recorded string
	Computed string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("Estimate drift detected.\n- recorded: %s\n- computed: %s\n"+
		"If you updated the estimate, re-run estimation and recreate approval.json:\n"+
		"  sddgov approval create --issue %d --mode %s --force",
		e.Recorded, e.Computed, e.Issue, e.Mode)
}

// ErrMissingRecord is returned by Check when approval.json is absent.
var ErrMissingRecord = errors.New("missing approval record file")

// Check validates the approval of issue: both files present, the record
// well-formed and for this issue, and the recorded hash equal to the hash
// of the current estimate. Paths in errors are repo-relative.
func Check(repoRoot, stateDir string, issue int) error {
	dir := Dir(repoRoot, stateDir, issue)
	estimatePath := filepath.Join(dir, EstimateFile)
	recordPath := filepath.Join(dir, RecordFile)

	if !isFile(estimatePath) {
		return fmt.Errorf("%w: %s", ErrMissingEstimate, relTo(repoRoot, estimatePath))
	}
	if !isFile(recordPath) {
		return fmt.Errorf("%w: %s", ErrMissingRecord, relTo(repoRoot, recordPath))
	}
	text, err := ReadEstimate(estimatePath)
	if err != nil {
		return err
	}
	rec, err := Load(recordPath)
	if err != nil {
		return err
	}
	if err := rec.Validate(issue); err != nil {
		return err
	}
	if computed := HashEstimate(text); computed != rec.EstimateHash {
		return &DriftError{Issue: issue, Mode: rec.Mode, Recorded: rec.EstimateHash, Computed: computed}
	}
	return nil
}

func relTo(root, p string) string {
	if rel, err := filepath.Rel(root, p); err == nil {
		return filepath.ToSlash(rel)
	}
	return p
}

// Load reads and decodes the approval record at path.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	return Decode(data)
}

func intValue(m json.RawMessage) (int, bool) {
	t := bytes.TrimSpace(m)
	if len(t) == 0 || t[0] == '"' {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(m, &n); err != nil {
		return 0, false
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, false
	}
	return v, true
}

func stringValue(m json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(m, &s); err != nil {
		return "", false
	}
	return s, true
}

func validMode(m string) bool { return contains(Modes, m) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
