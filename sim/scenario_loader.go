package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalsfoundry/virtualtime-simulator/actor"
	"github.com/signalsfoundry/virtualtime-simulator/vclock"
	"gopkg.in/yaml.v3"
)

// Scenario is a declarative topology loaded from a file: the actors,
// their send patterns and targets, and run options.
type Scenario struct {
	Trace    bool
	Duration vclock.Time
	Actors   []ScenarioActor
}

// ScenarioActor is one declared actor.
type ScenarioActor struct {
	Name    string
	Targets []string
	Pattern *actor.Pattern
}

// internal wire shapes – kept unexported so the format can evolve.
type scenarioWire struct {
	Trace      bool                `json:"trace" yaml:"trace"`
	DurationMS int64               `json:"duration_ms" yaml:"duration_ms"`
	Actors     []scenarioActorWire `json:"actors" yaml:"actors"`
}

type scenarioActorWire struct {
	Name    string               `json:"name" yaml:"name"`
	Targets []string             `json:"targets" yaml:"targets"`
	Pattern *scenarioPatternWire `json:"pattern" yaml:"pattern"`
}

type scenarioPatternWire struct {
	Kind      string `json:"kind" yaml:"kind"` // periodic | rate | burst | self_message
	Interval  int64  `json:"interval" yaml:"interval"`
	PerSecond int    `json:"per_second" yaml:"per_second"`
	Count     int    `json:"count" yaml:"count"`
	Delay     int64  `json:"delay" yaml:"delay"`
	Message   string `json:"message" yaml:"message"`
}

// LoadScenario reads a JSON scenario.
func LoadScenario(r io.Reader) (*Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var wire scenarioWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return buildScenario(&wire)
}

// LoadScenarioFile reads a scenario from disk, choosing the decoder by
// extension: .yaml/.yml use YAML, everything else JSON.
func LoadScenarioFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %q: %w", path, err)
	}
	var wire scenarioWire
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("decode scenario %q: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("decode scenario %q: %w", path, err)
		}
	}
	return buildScenario(&wire)
}

func buildScenario(wire *scenarioWire) (*Scenario, error) {
	sc := &Scenario{
		Trace:    wire.Trace,
		Duration: vclock.Time(wire.DurationMS),
	}
	seen := make(map[string]bool)
	for i, a := range wire.Actors {
		if a.Name == "" {
			return nil, fmt.Errorf("scenario actor %d: missing name", i)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("scenario actor %q declared twice", a.Name)
		}
		seen[a.Name] = true
		pattern, err := buildPattern(a.Name, a.Pattern)
		if err != nil {
			return nil, err
		}
		sc.Actors = append(sc.Actors, ScenarioActor{
			Name:    a.Name,
			Targets: a.Targets,
			Pattern: pattern,
		})
	}
	return sc, nil
}

func buildPattern(name string, wire *scenarioPatternWire) (*actor.Pattern, error) {
	if wire == nil {
		return nil, nil
	}
	var p *actor.Pattern
	switch wire.Kind {
	case "periodic":
		p = actor.Periodic(vclock.Time(wire.Interval), wire.Message)
	case "rate":
		p = actor.Rate(wire.PerSecond, wire.Message)
	case "burst":
		p = actor.Burst(wire.Count, vclock.Time(wire.Interval), wire.Message)
	case "self_message":
		p = actor.SelfMessage(vclock.Time(wire.Delay), wire.Message)
	default:
		return nil, fmt.Errorf("scenario actor %q: unknown pattern kind %q", name, wire.Kind)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("scenario actor %q: %w", name, err)
	}
	return p, nil
}

// Build assembles a simulation from the scenario. Options override the
// scenario's trace flag only when set.
func (sc *Scenario) Build(opts Options) (*Simulation, error) {
	if sc.Trace {
		opts.Trace = true
	}
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	for _, a := range sc.Actors {
		if err := s.AddActor(a.Name, actor.Options{
			Pattern: a.Pattern,
			Targets: a.Targets,
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}
