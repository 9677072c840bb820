package registry

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk registry format.
//
//	records:
//	  - key: users
//	    required: true
//	    default: []
//	    validate:
//	      type: array
//	      jq: 'all(.[]; type == "object")'
type File struct {
	Records []FileRecord `yaml:"records"`
}

// FileRecord is one record in a registry file.
type FileRecord struct {
	Key         string         `yaml:"key"`
	Required    bool           `yaml:"required"`
	Default     any            `yaml:"default"`
	Validate    FileValidation `yaml:"validate"`
	Description string         `yaml:"description"`
}

// FileValidation names the checks for a record. When both are set, both must hold.
type FileValidation struct {
	Type string   `yaml:"type"`
	JQ   string   `yaml:"jq"`
	Keys []string `yaml:"keys"`
}

// LoadFile reads and builds a registry from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse builds a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding registry: %w", err)
	}
	if len(f.Records) == 0 {
		return nil, fmt.Errorf("%w: registry has no records", ErrInvalidRecord)
	}

	records := make([]Record, 0, len(f.Records))
	for i, fr := range f.Records {
		v, err := fr.Validate.build()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d (%s): %v", ErrInvalidRecord, i, fr.Key, err)
		}
		records = append(records, Record{
			Key:         fr.Key,
			Default:     fr.Default,
			Required:    fr.Required,
			Validate:    v,
			Description: fr.Description,
		})
	}
	return New(records...)
}

func (fv FileValidation) build() (Validator, error) {
	var checks []Validator

	if fv.Type != "" {
		v, ok := TypeValidator(fv.Type)
		if !ok {
			return nil, fmt.Errorf("unknown validate.type %q", fv.Type)
		}
		checks = append(checks, v)
	}
	if len(fv.Keys) > 0 {
		checks = append(checks, ObjectWithKeys(fv.Keys...))
	}
	if fv.JQ != "" {
		v, err := JQ(fv.JQ)
		if err != nil {
			return nil, err
		}
		checks = append(checks, v)
	}

	switch len(checks) {
	case 0:
		return nil, fmt.Errorf("validate needs a type, keys or jq")
	case 1:
		return checks[0], nil
	default:
		return All(checks...), nil
	}
}
