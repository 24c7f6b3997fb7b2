// Package mapping infers, persists and reloads the correspondence between the
// semantic ingestion fields and the columns of a tabular source.
//
// An inferred mapping is a seed for human review: it is written once per
// source identity and every later run reuses the stored file verbatim, so a
// coach can correct it by editing the file.
package mapping

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"slices"
	"strings"

	"github.com/okian/athletegraph/internal/domain/model"
)

// prefixLen is how many leading letters of a field name a column must share.
const prefixLen = 3

// DefaultFileName is the per-coach mapping file name.
const DefaultFileName = "mappings.yaml"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// FieldMapping resolves required fields to source columns and carries the
// fixed coach id. Unresolved fields have no entry in Columns.
type FieldMapping struct {
	Columns     map[string]string
	CoachID     string
	ColumnsHash string
}

// Column returns the source column for field.
func (m FieldMapping) Column(field string) (string, bool) {
	col, ok := m.Columns[field]
	if !ok || col == "" {
		return "", false
	}
	return col, true
}

// Unresolved lists required fields that have no column, in field order.
func (m FieldMapping) Unresolved() []string {
	var missing []string
	for _, f := range model.RequiredFields {
		if _, ok := m.Column(f); !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// Complete reports whether every required field resolves.
func (m FieldMapping) Complete() bool {
	return len(m.Unresolved()) == 0
}

// Equal compares two mappings field by field.
func (m FieldMapping) Equal(o FieldMapping) bool {
	if m.CoachID != o.CoachID || m.ColumnsHash != o.ColumnsHash {
		return false
	}
	for _, f := range model.RequiredFields {
		a, aok := m.Column(f)
		b, bok := o.Column(f)
		if aok != bok || a != b {
			return false
		}
	}
	return true
}

// Infer proposes a mapping for columns. Fields are resolved in field order,
// each taking the first column, in input order, that satisfies the earliest
// matching rule:
//
//  1. the lowercase column name starts with the field's first three letters;
//  2. a '_', '-', '.' or space separated token of the column does;
//  3. the column starts with one of the field's fallback prefixes.
//
// Rules 2 and 3 skip columns already taken by another field. Fields without
// a match stay unresolved; coach_id is coachID.
func Infer(columns []string, coachID string) FieldMapping {
	m := FieldMapping{
		Columns:     make(map[string]string, len(model.RequiredFields)),
		CoachID:     coachID,
		ColumnsHash: HashColumns(columns),
	}
	taken := make(map[string]bool, len(columns))

	for _, field := range model.RequiredFields {
		prefix := fieldPrefix(field)
		for _, col := range columns {
			if strings.HasPrefix(strings.ToLower(col), prefix) {
				m.Columns[field] = col
				taken[col] = true
				break
			}
		}
	}

	for _, field := range model.RequiredFields {
		if _, ok := m.Columns[field]; ok {
			continue
		}
		if col, ok := firstFree(columns, taken, func(c string) bool {
			return tokenHasPrefix(c, fieldPrefix(field))
		}); ok {
			m.Columns[field] = col
			taken[col] = true
		}
	}

	for _, field := range model.RequiredFields {
		if _, ok := m.Columns[field]; ok {
			continue
		}
		if col, ok := firstFree(columns, taken, func(c string) bool {
			lc := strings.ToLower(c)
			for _, p := range fallbackPrefixes[field] {
				if strings.HasPrefix(lc, p) {
					return true
				}
			}
			return false
		}); ok {
			m.Columns[field] = col
			taken[col] = true
		}
	}
	return m
}

// fallbackPrefixes covers common headers that share no prefix with the field.
var fallbackPrefixes = map[string][]string{
	model.FieldTS:    {"tim", "dat"},
	model.FieldName:  {"met"},
	model.FieldValue: {"rea", "mea", "amo"},
}

func fieldPrefix(field string) string {
	return strings.ToLower(field[:min(prefixLen, len(field))])
}

func tokenHasPrefix(col, prefix string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(col), func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	for _, tok := range tokens {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}

func firstFree(columns []string, taken map[string]bool, match func(string) bool) (string, bool) {
	for _, col := range columns {
		if !taken[col] && match(col) {
			return col, true
		}
	}
	return "", false
}

// Identity maps every field onto a column of the same name. Record-shaped
// API payloads go through the validator with it.
func Identity(coachID string) FieldMapping {
	m := FieldMapping{
		Columns: make(map[string]string, len(model.RequiredFields)),
		CoachID: coachID,
	}
	for _, field := range model.RequiredFields {
		m.Columns[field] = field
	}
	return m
}

// HashColumns fingerprints an ordered column sequence.
func HashColumns(columns []string) string {
	h := sha256.New()
	for _, c := range columns {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Stale reports whether m was inferred from a different column sequence.
// Mappings without a recorded hash (hand-written files) are never stale.
func Stale(m FieldMapping, columns []string) bool {
	return m.ColumnsHash != "" && m.ColumnsHash != HashColumns(columns)
}

// MissingColumns lists mapped columns that are absent from columns, sorted.
func MissingColumns(m FieldMapping, columns []string) []string {
	var missing []string
	for _, f := range model.RequiredFields {
		col, ok := m.Column(f)
		if ok && !slices.Contains(columns, col) && !slices.Contains(missing, col) {
			missing = append(missing, col)
		}
	}
	slices.Sort(missing)
	return missing
}

// SafeIdentity turns a coach id into a path segment.
func SafeIdentity(coachID string) string {
	s := unsafeChars.ReplaceAllString(strings.TrimSpace(coachID), "_")
	if s == "" {
		return "_"
	}
	return s
}
