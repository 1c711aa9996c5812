package pipeline

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/rmmh/blockmesh/go/render"
	"gopkg.in/yaml.v3"
)

type ServeConfig struct {
	Addr         string `yaml:"addr" toml:"addr"`
	SchematicDir string `yaml:"schematic_dir" toml:"schematic_dir"`
	DataDir      string `yaml:"data_dir" toml:"data_dir"`
}

// Config controls one conversion run. Packs are listed highest priority
// first; the vanilla jar, if any, goes after all of them.
type Config struct {
	Packs             []string    `yaml:"packs" toml:"packs"`
	VanillaVersion    string      `yaml:"vanilla_version" toml:"vanilla_version"`
	JarCacheDir       string      `yaml:"jar_cache_dir" toml:"jar_cache_dir"`
	CacheDir          string      `yaml:"cache_dir" toml:"cache_dir"`
	Workers           int         `yaml:"workers" toml:"workers"`
	PruneEnclosed     bool        `yaml:"prune_enclosed" toml:"prune_enclosed"`
	TargetDataVersion int         `yaml:"target_data_version" toml:"target_data_version"`
	MaxParentDepth    int         `yaml:"max_parent_depth" toml:"max_parent_depth"`
	TransparentBlocks []string    `yaml:"transparent_blocks" toml:"transparent_blocks"`
	Serve             ServeConfig `yaml:"serve" toml:"serve"`
}

func DefaultConfig() *Config {
	return &Config{
		JarCacheDir:    ".",
		Workers:        runtime.NumCPU(),
		MaxParentDepth: render.DefaultMaxParentDepth,
		Serve: ServeConfig{
			Addr:    "127.0.0.1:9999",
			DataDir: "data",
		},
	}
}

// LoadConfig reads a YAML or TOML config, chosen by extension, on top of
// the defaults. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, errors.Errorf("%s: unknown config format", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxParentDepth <= 0 {
		cfg.MaxParentDepth = render.DefaultMaxParentDepth
	}
	return cfg, nil
}

// Validate checks that the config can drive a conversion.
func (c *Config) Validate() error {
	if len(c.Packs) == 0 && c.VanillaVersion == "" {
		return errors.New("no resource packs given")
	}
	for _, p := range c.Packs {
		if _, err := os.Stat(p); err != nil {
			return errors.Wrapf(err, "resource pack %s", p)
		}
	}
	if c.Workers < 0 {
		return errors.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.MaxParentDepth < 0 {
		return errors.Errorf("max_parent_depth must not be negative, got %d", c.MaxParentDepth)
	}
	if c.TargetDataVersion < 0 {
		return errors.Errorf("target_data_version must not be negative, got %d", c.TargetDataVersion)
	}
	return nil
}

// ValidateServe checks the settings the preview server needs.
func (c *Config) ValidateServe() error {
	if c.Serve.Addr == "" {
		return errors.New("serve.addr is required")
	}
	if c.Serve.SchematicDir == "" {
		return errors.New("serve.schematic_dir is required")
	}
	if c.Serve.DataDir == "" {
		return errors.New("serve.data_dir is required")
	}
	return nil
}
