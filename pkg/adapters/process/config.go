package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SolverConfig names a solver installation: the command for regular runs,
// the optional gamma-point-only build, and extra environment.
type SolverConfig struct {
	Name         string            `yaml:"name" json:"name"`
	Command      []string          `yaml:"command" json:"command"`
	GammaCommand []string          `yaml:"gamma_command" json:"gamma_command"`
	Environment  map[string]string `yaml:"env" json:"env"`
	Description  string            `yaml:"description" json:"description"`
}

// Env returns the environment as KEY=VALUE entries, suitable for WithEnv.
func (c SolverConfig) Env() []string {
	out := make([]string, 0, len(c.Environment))
	for k, v := range c.Environment {
		out = append(out, k+"="+v)
	}
	return out
}

// ConfigFile represents the structure of solvers.yaml
type ConfigFile struct {
	Solvers []SolverConfig `yaml:"solvers" json:"solvers"`
}

// LoadSolvers reads a configuration file (YAML or JSON) and returns a map of solver names to configs.
// A missing file yields an empty map.
func LoadSolvers(path string) (map[string]SolverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]SolverConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read solvers config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	solvers := make(map[string]SolverConfig)
	for _, s := range cfg.Solvers {
		if s.Name == "" || len(s.Command) == 0 {
			continue
		}
		solvers[s.Name] = s
	}
	return solvers, nil
}
