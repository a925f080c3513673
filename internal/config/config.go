package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"phaseline/internal/domain"
	"phaseline/internal/logging"
)

const FileName = "phaseline.yml"

// Config models phaseline.yml.
type Config struct {
	Project struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Methodology string `yaml:"methodology"`
	} `yaml:"project"`
	Engine struct {
		// ResetProgressOnRestart makes a self-transition reset the phase's progress to 0.
		ResetProgressOnRestart bool `yaml:"reset_progress_on_restart"`
		// SeedTemplates instantiates every catalog phase when a project is created.
		SeedTemplates bool `yaml:"seed_templates"`
	} `yaml:"engine"`
	Logging logging.Config `yaml:"logging"`
	Server  ServerConfig   `yaml:"server"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"base_path"`
	// JWTSecret signs bearer tokens; when empty only the X-Actor-Id header is honoured.
	JWTSecret        string `yaml:"jwt_secret"`
	AllowActorHeader bool   `yaml:"allow_actor_header"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with pl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(""), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.Methodology != "" {
		if _, err := domain.ParseMethodology(c.Project.Methodology); err != nil {
			return fmt.Errorf("config.project.methodology: %w", err)
		}
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.%w", err)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(GenerateDefault(projectID)), &cfg); err != nil {
		panic(fmt.Sprintf("config: default template: %v", err))
	}
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing from
// data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `project:
  id: "%s"
  name: ""
  methodology: ""

engine:
  reset_progress_on_restart: false
  seed_templates: true

logging:
  level: info
  format: console
  output: stderr

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  jwt_secret: ""
  allow_actor_header: true
`
