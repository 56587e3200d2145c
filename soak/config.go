package soak

import (
	_ "embed"
	"fmt"
	"time"

	j "github.com/goccy/go-json"
	"github.com/kaptinlin/jsonschema"
	"gopkg.in/yaml.v3"

	shapecover "github.com/reoring/shapecover"
)

//go:embed config_schema.json
var rawConfigSchema []byte

// Config is the YAML/JSON-loadable workload configuration. Durations and rates
// mirror the harness options: testDuration is in seconds.
type Config struct {
	TestDuration      float64 `yaml:"testDuration" json:"testDuration"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Schema            string  `yaml:"schema" json:"schema"`
	RequireCoverage   bool    `yaml:"requireCoverage" json:"requireCoverage"`
	Severity          string  `yaml:"severity" json:"severity"`
}

// ParseConfig decodes a YAML (or JSON; YAML is a superset here) configuration
// document, validating it against the embedded meta schema first so typos and
// wrong-typed fields fail loudly instead of silently taking defaults.
func ParseConfig(data []byte) (Config, error) {
	var node any
	if err := yaml.Unmarshal(data, &node); err != nil {
		return Config{}, fmt.Errorf("soak: parse config: %w", err)
	}
	if node == nil {
		return Config{}, nil
	}
	if errs := validateConfig(node); len(errs) > 0 {
		return Config{}, fmt.Errorf("soak: invalid config: %v", errs[0])
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("soak: parse config: %w", err)
	}
	return cfg, nil
}

func validateConfig(node any) []error {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(rawConfigSchema)
	if err != nil {
		return []error{err}
	}

	// kaptinlin validates JSON bytes; re-encode the YAML node to line types up.
	data, err := j.Marshal(node)
	if err != nil {
		return []error{err}
	}

	var errs []error
	result := schema.Validate(data)
	if !result.IsValid() {
		for _, verr := range result.Errors {
			errs = append(errs, verr)
		}
	}
	return errs
}

// Options converts the config into workload options, applying the harness
// defaults for unset fields.
func (c Config) Options() Options {
	var opts Options
	if c.TestDuration > 0 {
		opts.TestDuration = time.Duration(c.TestDuration * float64(time.Second))
	}
	opts.RequestsPerSecond = c.RequestsPerSecond
	opts = opts.withDefaults()
	switch c.Severity {
	case "warn":
		opts.Severity = shapecover.Warn
	case "ignore":
		opts.Severity = shapecover.Ignore
	default:
		opts.Severity = shapecover.Error
	}
	return opts
}
