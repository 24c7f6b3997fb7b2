package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/athletegraph/internal/domain/model"
)

// Document keys besides the field names.
const (
	keyColumnsHash = "columns_hash"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// PathFor returns the per-coach mapping file under dir.
func PathFor(dir, coachID string) string {
	return filepath.Join(dir, "coach_"+SafeIdentity(coachID), DefaultFileName)
}

// Save writes m to path as a flat key -> string-or-null document. Paths ending
// in .json are written as JSON, everything else as YAML. The write goes
// through a temp file and a rename so readers never see a partial document.
func Save(m FieldMapping, path string) error {
	var (
		raw []byte
		err error
	)
	if isJSON(path) {
		raw, err = encodeJSON(m)
	} else {
		raw, err = encodeYAML(m)
	}
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create mapping dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mapping-*")
	if err != nil {
		return fmt.Errorf("create temp mapping: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write mapping: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod mapping: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close mapping: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename mapping: %w", err)
	}
	return nil
}

// Load reads a mapping document written by Save or edited by hand.
func Load(path string) (FieldMapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FieldMapping{}, fmt.Errorf("read mapping %s: %w", path, err)
	}

	// JSON is a subset of YAML, one decoder serves both.
	var doc map[string]*string
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return FieldMapping{}, fmt.Errorf("%w: %s: %w", ErrMalformedMapping, path, err)
	}
	if doc == nil {
		return FieldMapping{}, fmt.Errorf("%w: %s: empty document", ErrMalformedMapping, path)
	}

	m := FieldMapping{Columns: make(map[string]string, len(model.RequiredFields))}
	for _, f := range model.RequiredFields {
		if v := doc[f]; v != nil && strings.TrimSpace(*v) != "" {
			m.Columns[f] = *v
		}
	}
	if v := doc[model.FieldCoachID]; v != nil {
		m.CoachID = strings.TrimSpace(*v)
	}
	if v := doc[keyColumnsHash]; v != nil {
		m.ColumnsHash = strings.TrimSpace(*v)
	}
	return m, nil
}

// GetOrCreate returns the mapping stored at path, or infers one from columns,
// persists it and returns it with created=true. A stored mapping is returned
// as-is even when columns differ from the ones it was inferred from; use
// Stale to detect that. A stored file without coach_id takes coachID.
func GetOrCreate(columns []string, path, coachID string) (FieldMapping, bool, error) {
	m, err := Load(path)
	switch {
	case err == nil:
		if m.CoachID == "" {
			m.CoachID = coachID
		}
		return m, false, nil
	case !errors.Is(err, fs.ErrNotExist):
		return FieldMapping{}, false, err
	}

	m = Infer(columns, coachID)
	if err := Save(m, path); err != nil {
		return FieldMapping{}, false, err
	}
	return m, true, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// encodeYAML keeps field order so the file reads the way a person edits it.
func encodeYAML(m FieldMapping) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value *string) {
		k := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		v := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		if value != nil {
			v = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: *value}
		}
		root.Content = append(root.Content, k, v)
	}
	for _, f := range model.RequiredFields {
		if col, ok := m.Column(f); ok {
			add(f, &col)
		} else {
			add(f, nil)
		}
	}
	coach := m.CoachID
	add(model.FieldCoachID, &coach)
	if m.ColumnsHash != "" {
		hash := m.ColumnsHash
		add(keyColumnsHash, &hash)
	}
	root.HeadComment = "Field -> source column. Edit a value to correct the mapping; null means unresolved."

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeJSON(m FieldMapping) ([]byte, error) {
	doc := make(map[string]*string, len(model.RequiredFields)+2)
	for _, f := range model.RequiredFields {
		if col, ok := m.Column(f); ok {
			doc[f] = &col
		} else {
			doc[f] = nil
		}
	}
	coach := m.CoachID
	doc[model.FieldCoachID] = &coach
	if m.ColumnsHash != "" {
		hash := m.ColumnsHash
		doc[keyColumnsHash] = &hash
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
