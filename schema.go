package coltable

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Field describes a single column.
type Field struct {
	Name     string   `json:"name"`
	Type     PType    `json:"type"`
	Encoding Encoding `json:"encoding,omitempty"`
}

// Schema describes the columns of a file.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Index returns the position of the named column or -1.
func (s *Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks that every field has a unique name, a known type and an
// encoding that suits it. A zero encoding stands for Plain.
func (s *Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("coltable: field %d has no name", i)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("coltable: duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		if !f.Type.Valid() {
			return fmt.Errorf("coltable: field %q has invalid type %s", f.Name, f.Type)
		}

		switch f.Encoding {
		case 0, Plain, Snappy, Zstd, LZ4:
		case BitPacked:
			if !f.Type.Unsigned() {
				return fmt.Errorf("coltable: field %q cannot bit-pack %s values", f.Name, f.Type)
			}
		case ALP:
			if f.Type != Float64 {
				return fmt.Errorf("coltable: field %q cannot ALP-encode %s values", f.Name, f.Type)
			}
		default:
			return fmt.Errorf("coltable: field %q has unsupported encoding %s", f.Name, f.Encoding)
		}
	}
	return nil
}

func (s *Schema) norm() *Schema {
	t := &Schema{Fields: make([]Field, len(s.Fields))}
	copy(t.Fields, s.Fields)
	for i := range t.Fields {
		if t.Fields[i].Encoding == 0 {
			t.Fields[i].Encoding = Plain
		}
	}
	return t
}

// MarshalSchema serializes a schema into a framed section. Zero encodings
// are stored as Plain.
func MarshalSchema(s *Schema) ([]byte, error) {
	if len(s.Fields) == 0 {
		return appendSection(nil, nil), nil
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(s.norm())
	if err != nil {
		return nil, err
	}
	return appendSection(nil, body), nil
}

func unmarshalSchema(p []byte, offset int64) (*Schema, error) {
	s := new(Schema)
	if len(p) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(p, s); err != nil {
		return nil, &FormatError{Section: "schema", Offset: offset, Detail: "bad schema", Cause: err}
	}
	if err := s.Validate(); err != nil {
		return nil, &FormatError{Section: "schema", Offset: offset, Detail: "invalid schema", Cause: err}
	}
	return s.norm(), nil
}
