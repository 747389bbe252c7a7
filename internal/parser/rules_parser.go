package parser

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultSeparator separates the date, the execution ARN and the message.
	DefaultSeparator = ": "
	// DefaultProvenancePrefix is the ARN prefix of Step Functions resources.
	DefaultProvenancePrefix = "arn:aws:states:"
)

// LineRules describe the shape of an accepted log line.
type LineRules struct {
	Separator        string `yaml:"separator"`
	ProvenancePrefix string `yaml:"provenance_prefix"`
}

// DefaultLineRules returns the rules for Step Functions Local output.
func DefaultLineRules() LineRules {
	return LineRules{
		Separator:        DefaultSeparator,
		ProvenancePrefix: DefaultProvenancePrefix,
	}
}

func (r LineRules) withDefaults() LineRules {
	if r.Separator == "" {
		r.Separator = DefaultSeparator
	}
	if r.ProvenancePrefix == "" {
		r.ProvenancePrefix = DefaultProvenancePrefix
	}
	return r
}

// LoadLineRules reads rules from a YAML file. Missing fields keep their defaults.
func LoadLineRules(filePath string) (LineRules, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return LineRules{}, err
	}
	defer file.Close()

	return LoadLineRulesFromReader(file)
}

// LoadLineRulesFromReader parses rules from an io.Reader.
func LoadLineRulesFromReader(r io.Reader) (LineRules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return LineRules{}, err
	}

	var rules LineRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return LineRules{}, fmt.Errorf("failed to parse line rules: %w", err)
	}

	return rules.withDefaults(), nil
}
