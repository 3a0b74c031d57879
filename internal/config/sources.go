package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
)

// identifierPattern restricts table and column names, which are interpolated
// into SQL statements, to plain (optionally schema-qualified) identifiers.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type sourcesFile struct {
	Sources []sourceEntry `yaml:"sources"`
}

// sourceEntry is the YAML form of a domain.SourceDescriptor. String values
// may reference environment variables as ${NAME}.
type sourceEntry struct {
	Name           string   `yaml:"name"`
	Kind           string   `yaml:"kind"`
	URL            string   `yaml:"url"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Table          string   `yaml:"table"`
	Fields         []string `yaml:"fields"`
	OptionalFields []string `yaml:"optional_fields"`
	ConflictKeys   []string `yaml:"conflict_keys"`
	Label          string   `yaml:"label"`
	EnvelopeKey    string   `yaml:"envelope_key"`
}

// LoadSources reads and validates the source descriptor file at path.
func LoadSources(path string) ([]domain.SourceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SOURCES_FILE: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes descriptor YAML, expands environment references and
// applies per-kind defaults.
func ParseSources(data []byte) ([]domain.SourceDescriptor, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, errors.New("no sources configured")
	}

	seen := make(map[string]bool, len(f.Sources))
	out := make([]domain.SourceDescriptor, 0, len(f.Sources))
	for i, e := range f.Sources {
		src, err := e.descriptor()
		if err != nil {
			return nil, fmt.Errorf("source %d (%q): %w", i, e.Name, err)
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
		out = append(out, src)
	}
	return out, nil
}

func (e sourceEntry) descriptor() (domain.SourceDescriptor, error) {
	src := domain.SourceDescriptor{
		Name:           os.ExpandEnv(e.Name),
		Kind:           domain.Kind(e.Kind),
		Endpoint:       os.ExpandEnv(e.URL),
		Username:       os.ExpandEnv(e.Username),
		Password:       os.ExpandEnv(e.Password),
		Destination:    os.ExpandEnv(e.Table),
		Fields:         e.Fields,
		OptionalFields: e.OptionalFields,
		ConflictKeys:   e.ConflictKeys,
		Label:          os.ExpandEnv(e.Label),
		EnvelopeKey:    e.EnvelopeKey,
	}

	if src.Kind == "" {
		src.Kind = domain.KindReading
	}
	if src.Kind != domain.KindReading && src.Kind != domain.KindMaster {
		return src, fmt.Errorf("unknown kind %q", e.Kind)
	}
	if src.Destination == "" && src.Kind == domain.KindMaster {
		src.Destination = domain.DefaultMasterTable
	}
	if len(src.ConflictKeys) == 0 {
		src.ConflictKeys = domain.DefaultConflictKeys(src.Kind)
	}
	if src.EnvelopeKey == "" {
		src.EnvelopeKey = domain.DefaultEnvelopeKey(src.Kind)
	}

	return src, validate(src)
}

func validate(src domain.SourceDescriptor) error {
	switch {
	case src.Name == "":
		return errors.New("name is required")
	case src.Endpoint == "":
		return errors.New("url is required")
	case src.Destination == "":
		return errors.New("table is required")
	case len(src.Fields) == 0:
		return errors.New("fields must not be empty")
	}

	if !identifierPattern.MatchString(src.Destination) {
		return fmt.Errorf("invalid table name %q", src.Destination)
	}
	cols := make(map[string]bool)
	for _, c := range src.Columns() {
		if !identifierPattern.MatchString(c) {
			return fmt.Errorf("invalid column name %q", c)
		}
		if cols[c] {
			return fmt.Errorf("column %q listed twice", c)
		}
		cols[c] = true
	}
	for _, k := range src.ConflictKeys {
		if !cols[k] {
			return fmt.Errorf("conflict key %q is not a configured field", k)
		}
	}
	return nil
}
