package identify

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
)

// Definition describes a pattern matcher in the definitions file.
type Definition struct {
	Code          string   `yaml:"code"`
	Name          string   `yaml:"name"`
	Publication   string   `yaml:"publication"`
	Markers       []string `yaml:"markers"`
	NumberPattern string   `yaml:"number_pattern"`
	DatePattern   string   `yaml:"date_pattern"`
}

type definitionsFile struct {
	Jurisdictions []Definition `yaml:"jurisdictions"`
}

// LoadDefinitions reads pattern matchers from a YAML file.
func LoadDefinitions(path string) ([]*PatternIdentifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "identify", "load definitions", path, err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions compiles the YAML document into identifiers.
func ParseDefinitions(data []byte) ([]*PatternIdentifier, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "identify", "parse definitions", "invalid yaml", err)
	}
	out := make([]*PatternIdentifier, 0, len(file.Jurisdictions))
	for i, def := range file.Jurisdictions {
		id, err := def.compile()
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "identify", "parse definitions", fmt.Sprintf("jurisdictions[%d]", i), err)
		}
		out = append(out, id)
	}
	return out, nil
}

func (d Definition) compile() (*PatternIdentifier, error) {
	code := gazette.NormalizeJurisdiction(d.Code)
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	markers := make([]string, 0, len(d.Markers))
	for _, m := range d.Markers {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, m)
		}
	}
	if len(markers) < 2 {
		return nil, fmt.Errorf("%s: at least two markers are required", code)
	}
	if strings.TrimSpace(d.Publication) == "" {
		return nil, fmt.Errorf("%s: publication is required", code)
	}
	numberRE, err := regexp.Compile(d.NumberPattern)
	if err != nil {
		return nil, fmt.Errorf("%s: number_pattern: %w", code, err)
	}
	if numberRE.NumSubexp() < 1 || d.NumberPattern == "" {
		return nil, fmt.Errorf("%s: number_pattern needs a capture group", code)
	}
	dateRE := defaultDateRE
	if d.DatePattern != "" {
		if dateRE, err = regexp.Compile(d.DatePattern); err != nil {
			return nil, fmt.Errorf("%s: date_pattern: %w", code, err)
		}
		if dateRE.NumSubexp() < 3 {
			return nil, fmt.Errorf("%s: date_pattern must capture day, month and year", code)
		}
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = strings.ToUpper(code)
	}
	return &PatternIdentifier{
		Jurisdiction: code,
		Name:         name,
		Publication:  strings.TrimSpace(d.Publication),
		Markers:      markers,
		NumberRE:     numberRE,
		DateRE:       dateRE,
	}, nil
}
