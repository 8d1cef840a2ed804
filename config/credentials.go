package config

import (
	"fmt"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// DefaultSink writes resolved credentials to the shared AWS credentials file.
// The zero value is ready to use.
type DefaultSink struct{}

// PersistDefault writes the credentials as the [default] profile and returns
// the path written to.
func (DefaultSink) PersistDefault(accessKeyID, secretAccessKey, sessionToken string) (string, error) {
	return WriteDefaultCredentials(accessKeyID, secretAccessKey, sessionToken)
}

// WriteDefaultCredentials overwrites ~/.aws/credentials with a single
// [default] profile holding the given credentials. The whole file is
// replaced; pre-existing profiles are not preserved.
func WriteDefaultCredentials(accessKeyID, secretAccessKey, sessionToken string) (string, error) {
	awsDir, err := ensureAWSDir()
	if err != nil {
		return "", err
	}

	credentialsPath := filepath.Join(awsDir, "credentials")

	cfg := ini.Empty()
	section, err := cfg.NewSection("default")
	if err != nil {
		return "", fmt.Errorf("failed to create default profile section: %w", err)
	}

	section.Key("aws_access_key_id").SetValue(accessKeyID)
	section.Key("aws_secret_access_key").SetValue(secretAccessKey)
	section.Key("aws_session_token").SetValue(sessionToken)

	if err := cfg.SaveTo(credentialsPath); err != nil {
		return "", fmt.Errorf("failed to save credentials file: %w", err)
	}

	return credentialsPath, nil
}
