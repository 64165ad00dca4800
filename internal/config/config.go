package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// ShiftTemplate defines a recurring care shift to expand into open shifts.
type ShiftTemplate struct {
	GroupID   string `yaml:"groupID" validate:"required"`
	ElderID   string `yaml:"elderID" validate:"required"`
	ElderName string `yaml:"elderName" validate:"required"`
	RRule     string `yaml:"rrule" validate:"required"`
	StartTime string `yaml:"startTime" validate:"required"`
	EndTime   string `yaml:"endTime" validate:"required"`
}

// Config represents the application configuration
type Config struct {
	ListenAddr           string            `yaml:"listenAddr" validate:"required"`
	DatabaseURL          string            `yaml:"databaseURL" validate:"required"`
	AuthAudience         string            `yaml:"authAudience,omitempty"`
	StaticTokens         map[string]string `yaml:"staticTokens,omitempty"` // token -> caregiver id, dev/test only
	OfferWindowMinutes   int               `yaml:"offerWindowMinutes" validate:"required,min=1"`
	SweepIntervalMinutes int               `yaml:"sweepIntervalMinutes,omitempty" validate:"omitempty,min=1"`
	EscalationUserID     string            `yaml:"escalationUserID,omitempty"`
	ShiftTemplates       []ShiftTemplate   `yaml:"shiftTemplates,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads and validates the configuration for the given environment.
// It looks for careshift_<env>.yaml in the current directory first, then in
// the user's home directory.
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(fmt.Sprintf("careshift_%s.yaml", env))
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for i, template := range cfg.ShiftTemplates {
		if _, err := rrule.StrToRRule(template.RRule); err != nil {
			return fmt.Errorf("invalid rrule in shiftTemplates[%d]: %w", i, err)
		}
	}

	return nil
}

// findConfigFile searches for the named config file in the current directory
// and the home directory.
func findConfigFile(configFileName string) (string, error) {
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
