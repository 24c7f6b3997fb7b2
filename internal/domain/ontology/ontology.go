// Package ontology loads the closed set of allowed unit-of-measure symbols.
//
// The set is read once at process start and passed around by value; nothing
// mutates it afterwards.
package ontology

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document formats understood by Parse.
const (
	FormatTurtle = "ttl"
	FormatYAML   = "yaml"
)

// Turtle markers declaring a unit individual.
var unitMarkers = []string{"rdf:type :AllowedUnit", " a :AllowedUnit"}

// AllowedUnitSet is an immutable, sorted set of unit symbols.
type AllowedUnitSet struct {
	symbols []string
	index   map[string]struct{}
}

// NewAllowedUnitSet deduplicates and sorts symbols. Blank symbols are dropped.
func NewAllowedUnitSet(symbols ...string) AllowedUnitSet {
	index := make(map[string]struct{}, len(symbols))
	sorted := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := index[s]; ok {
			continue
		}
		index[s] = struct{}{}
		sorted = append(sorted, s)
	}
	slices.Sort(sorted)
	return AllowedUnitSet{symbols: sorted, index: index}
}

// Contains reports whether unit is allowed. Matching is exact.
func (s AllowedUnitSet) Contains(unit string) bool {
	_, ok := s.index[unit]
	return ok
}

// Symbols returns a copy of the sorted symbols.
func (s AllowedUnitSet) Symbols() []string {
	return slices.Clone(s.symbols)
}

// Len returns the number of symbols.
func (s AllowedUnitSet) Len() int { return len(s.symbols) }

// String renders the set for error messages.
func (s AllowedUnitSet) String() string {
	return "[" + strings.Join(s.symbols, ", ") + "]"
}

// Load reads the ontology at path, picking the format from the extension
// (.yaml/.yml/.json as YAML, anything else as Turtle).
func Load(_ context.Context, path string) (AllowedUnitSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return AllowedUnitSet{}, &LoadError{Source: path, Err: err}
	}
	defer f.Close()

	set, err := Parse(f, FormatFor(path))
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Source = path
			return AllowedUnitSet{}, le
		}
		return AllowedUnitSet{}, &LoadError{Source: path, Err: err}
	}
	return set, nil
}

// FormatFor maps a file name to a document format.
func FormatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML
	default:
		return FormatTurtle
	}
}

// Parse reads a unit document in the given format.
func Parse(r io.Reader, format string) (AllowedUnitSet, error) {
	var (
		symbols []string
		err     error
	)
	switch format {
	case FormatTurtle:
		symbols, err = parseTurtle(r)
	case FormatYAML:
		symbols, err = parseYAML(r)
	default:
		err = fmt.Errorf("unknown ontology format %q", format)
	}
	if err != nil {
		return AllowedUnitSet{}, &LoadError{Err: err}
	}

	set := NewAllowedUnitSet(symbols...)
	if set.Len() == 0 {
		return AllowedUnitSet{}, &LoadError{Err: ErrNoUnits}
	}
	return set, nil
}

// parseTurtle extracts the subject of every line declaring an AllowedUnit,
// e.g. `:kg rdf:type :AllowedUnit ;` yields "kg".
func parseTurtle(r io.Reader) ([]string, error) {
	var symbols []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if !declaresUnit(line) {
			continue
		}
		subject := strings.Fields(trimmed)[0]
		symbols = append(symbols, strings.Trim(subject, ":"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read turtle: %w", err)
	}
	return symbols, nil
}

func declaresUnit(line string) bool {
	for _, marker := range unitMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

type unitDocument struct {
	Units []string `yaml:"units"`
}

func parseYAML(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var doc unitDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode units: %w", err)
	}
	return doc.Units, nil
}
