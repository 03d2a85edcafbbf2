package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/types"
)

// Profile binds a named configuration to an identity instance
type Profile struct {
	InstanceARN       string                `yaml:"instance_arn"`
	IdentityStoreID   string                `yaml:"identity_store_id"`
	Region            string                `yaml:"region"`
	StoragePath       string                `yaml:"storage_path,omitempty"`
	Retention         types.RetentionPolicy `yaml:"retention,omitempty"`
	RetentionSchedule string                `yaml:"retention_schedule,omitempty"`
	StorageLimit      *types.StorageLimit   `yaml:"storage_limit,omitempty"`
	EncryptionKeyID   string                `yaml:"encryption_key_id,omitempty"`
	OrphanCacheTTL    time.Duration         `yaml:"orphan_cache_ttl,omitempty"`
}

// Config is the on-disk configuration file
type Config struct {
	DefaultProfile string             `yaml:"default_profile,omitempty"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// DefaultPath returns the default configuration file location
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "idman.yaml"
	}
	return filepath.Join(home, ".idman", "config.yaml")
}

// Load reads and validates the configuration file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindConfiguration, errdefs.CodeCorruptConfig,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errdefs.Wrap(errdefs.KindConfiguration, errdefs.CodeCorruptConfig,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	for name, p := range cfg.Profiles {
		if err := validateProfile(name, p); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Resolve returns the named profile, or the default when name is empty
func (c *Config) Resolve(name string) (string, *Profile, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" {
		return "", nil, errdefs.New(errdefs.KindConfiguration, errdefs.CodeMissingProfile,
			"no profile selected and no default_profile configured")
	}
	p, ok := c.Profiles[name]
	if !ok {
		return "", nil, errdefs.New(errdefs.KindConfiguration, errdefs.CodeMissingProfile,
			fmt.Sprintf("profile not found: %s", name))
	}
	return name, &p, nil
}

func validateProfile(name string, p Profile) error {
	if p.InstanceARN == "" {
		return errdefs.New(errdefs.KindConfiguration, errdefs.CodeMissingInstance,
			fmt.Sprintf("profile %s has no instance binding", name))
	}
	if p.RetentionSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(p.RetentionSchedule); err != nil {
			return errdefs.Wrap(errdefs.KindConfiguration, errdefs.CodeCorruptConfig,
				fmt.Sprintf("profile %s has an invalid retention_schedule", name), err)
		}
	}
	return nil
}

// OrphanTTL returns the orphan cache validity window, defaulting to one hour
func (p *Profile) OrphanTTL() time.Duration {
	if p.OrphanCacheTTL > 0 {
		return p.OrphanCacheTTL
	}
	return time.Hour
}
