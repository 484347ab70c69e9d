package stress

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfig   = errors.New("invalid config")
	ErrUnknownScenario = errors.New("unknown scenario")
)

// Config describes a stress run.
type Config struct {
	// Scenarios to run. All scenarios run when empty.
	Scenarios []string `json:"scenarios,omitempty" yaml:"scenarios,omitempty" jsonschema:"description=Names of the scenarios to run. All scenarios run when empty."`
	// Workers is the number of goroutines per scenario.
	Workers int `json:"workers" yaml:"workers" jsonschema:"description=Number of goroutines per scenario.,minimum=1,default=8"`
	// Rounds is the number of operations each worker performs.
	Rounds int `json:"rounds" yaml:"rounds" jsonschema:"description=Number of operations each worker performs.,minimum=1,default=1000"`
	// Parallelism is the number of scenarios that run at the same time.
	Parallelism int `json:"parallelism" yaml:"parallelism" jsonschema:"description=Number of scenarios running at the same time.,minimum=1,default=1"`
	// Spin is the spin count passed to every primitive.
	Spin int `json:"spin" yaml:"spin" jsonschema:"description=Spin count used by every primitive before parking.,minimum=0"`
	// Duration bounds each scenario. Zero runs all rounds.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty" jsonschema:"type=string,description=Time limit of each scenario as a Go duration. Zero runs all rounds."`
	// OpTimeout bounds every blocking operation.
	OpTimeout time.Duration `json:"opTimeout,omitempty" yaml:"opTimeout,omitempty" jsonschema:"type=string,description=Timeout of every blocking operation as a Go duration.,default=5s"`
}

// DefaultConfig returns a [Config] that runs every scenario.
func DefaultConfig() Config {
	return Config{
		Workers:     8,
		Rounds:      1000,
		Parallelism: 1,
		OpTimeout:   5 * time.Second,
	}
}

// LoadConfig reads a YAML config from r. Unset fields keep their
// [DefaultConfig] values.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%w: decode yaml: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the config and the scenario names.
func (c Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	case c.Rounds < 1:
		return fmt.Errorf("%w: rounds must be at least 1, got %d", ErrInvalidConfig, c.Rounds)
	case c.Parallelism < 1:
		return fmt.Errorf("%w: parallelism must be at least 1, got %d", ErrInvalidConfig, c.Parallelism)
	case c.Spin < 0:
		return fmt.Errorf("%w: spin must not be negative, got %d", ErrInvalidConfig, c.Spin)
	case c.Duration < 0:
		return fmt.Errorf("%w: duration must not be negative, got %s", ErrInvalidConfig, c.Duration)
	case c.OpTimeout <= 0:
		return fmt.Errorf("%w: opTimeout must be positive, got %s", ErrInvalidConfig, c.OpTimeout)
	}

	for _, name := range c.Scenarios {
		if _, ok := scenarios[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownScenario, name)
		}
	}

	return nil
}

// ScenarioNames returns the scenarios selected by the config, in run order.
func (c Config) ScenarioNames() []string {
	if len(c.Scenarios) == 0 {
		return Scenarios()
	}

	return slices.Clone(c.Scenarios)
}

// Schema returns the JSON schema of the config file.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
	}

	js := r.Reflect(&Config{})
	js.Title = "stsync stress config"

	if cv, ok := js.Properties.Get("scenarios"); ok && cv.Items != nil {
		for _, name := range Scenarios() {
			cv.Items.Enum = append(cv.Items.Enum, name)
		}
	}

	b, err := js.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal json schema: %w", err)
	}

	return b, nil
}
