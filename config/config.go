package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

const ssograbConfigFileName = "ssograb"

// SSOProfile is a saved (start URL, region) pair the operator can pick
// instead of typing flags.
type SSOProfile struct {
	Name     string
	StartURL string
	Region   string
}

// Manager handles configuration file operations.
type Manager struct {
	configPath string
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	return &Manager{configPath: configPath}, nil
}

// SaveProfiles saves SSO profiles to the configuration file.
func (m *Manager) SaveProfiles(profiles []SSOProfile) error {
	cfg := ini.Empty()

	for _, profile := range profiles {
		section, err := cfg.NewSection(profile.Name)
		if err != nil {
			return fmt.Errorf("failed to create section for profile %s: %w", profile.Name, err)
		}

		section.Key("start_url").SetValue(profile.StartURL)
		section.Key("region").SetValue(profile.Region)
	}

	if err := cfg.SaveTo(m.configPath); err != nil {
		return fmt.Errorf("failed to save ssograb config file: %w", err)
	}

	return nil
}

// LoadProfiles loads SSO profiles from the configuration file. A missing file
// is an empty profile list, not an error.
func (m *Manager) LoadProfiles() ([]SSOProfile, error) {
	cfg, err := ini.Load(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []SSOProfile{}, nil
		}
		return nil, fmt.Errorf("failed to load ssograb config file: %w", err)
	}

	var profiles []SSOProfile

	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}

		profiles = append(profiles, SSOProfile{
			Name:     section.Name(),
			StartURL: section.Key("start_url").String(),
			Region:   section.Key("region").String(),
		})
	}

	return profiles, nil
}

func getConfigPath() (string, error) {
	awsDir, err := ensureAWSDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(awsDir, ssograbConfigFileName), nil
}

// ensureAWSDir resolves ~/.aws, creating it if absent.
func ensureAWSDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	awsDir := filepath.Join(homeDir, ".aws")
	if err := os.MkdirAll(awsDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create .aws directory: %w", err)
	}

	return awsDir, nil
}
