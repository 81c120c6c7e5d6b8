package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/IKNL/PZP-FHIR-STU3/mappings"
	"github.com/IKNL/PZP-FHIR-STU3/questionnaire"
)

// Config represents the pzpfhir configuration
type Config struct {
	Transform TransformConfig `mapstructure:"transform"`
	Mappings  MappingsConfig  `mapstructure:"mappings"`
	Prefix    PrefixConfig    `mapstructure:"prefix"`
}

// TransformConfig represents resource transformer configuration
type TransformConfig struct {
	InputDirs []string `mapstructure:"input_dirs"`
	OutputDir string   `mapstructure:"output_dir"`
	Pattern   string   `mapstructure:"pattern"`
	Resources []string `mapstructure:"resources"`
}

// MappingsConfig represents mapping table generator configuration
type MappingsConfig struct {
	ResourcesDir    string   `mapstructure:"resources_dir"`
	OutputFile      string   `mapstructure:"output_file"`
	DatasetFile     string   `mapstructure:"dataset_file"`
	DatasetIdentity string   `mapstructure:"dataset_identity"`
	Mode            string   `mapstructure:"mode"`
	IgnoreUnmapped  []string `mapstructure:"ignore_unmapped"`
}

// PrefixConfig represents questionnaire prefix populator configuration
type PrefixConfig struct {
	InputDir string `mapstructure:"input_dir"`
}

// Load loads the configuration from pzpfhir.yaml
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("transform.pattern", "*.json")
	v.SetDefault("mappings.resources_dir", mappings.DefaultResourcesDir)
	v.SetDefault("mappings.output_file", mappings.DefaultOutputFile)
	v.SetDefault("mappings.dataset_file", mappings.DefaultDatasetFile)
	v.SetDefault("mappings.dataset_identity", mappings.DefaultDatasetIdentity)
	v.SetDefault("mappings.mode", mappings.ModeNormal)
	v.SetDefault("mappings.ignore_unmapped", mappings.DefaultIgnoreUnmapped)
	v.SetDefault("prefix.input_dir", questionnaire.DefaultInputDir)

	// Set config name and paths
	v.SetConfigName("pzpfhir")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Transform.Pattern == "" {
		return fmt.Errorf("transform.pattern must not be empty")
	}
	switch cfg.Mappings.Mode {
	case mappings.ModeNormal, mappings.ModeDevelop:
	default:
		return fmt.Errorf("unknown mappings.mode %q (valid: %s, %s)",
			cfg.Mappings.Mode, mappings.ModeNormal, mappings.ModeDevelop)
	}
	return nil
}
