package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables holding the operator account.
const (
	EnvUsername = "ENROLLWARE_USERNAME"
	EnvPassword = "ENROLLWARE_PASSWORD"
)

// DefaultEnvFile is loaded when no explicit env file is given.
const DefaultEnvFile = ".env"

// ErrMissingCredentials is returned when a required variable is unset.
var ErrMissingCredentials = errors.New("missing required environment variables")

// Credentials is the operator account used to log in.
type Credentials struct {
	Username string
	Password string
}

// LoadEnvFile seeds the environment from a dotenv file. Variables already
// set in the environment win. A missing DefaultEnvFile is not an error; a
// missing explicitly named file is.
func LoadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// CredentialsFromEnv reads the operator account from the environment.
func CredentialsFromEnv() (Credentials, error) {
	creds := Credentials{
		Username: os.Getenv(EnvUsername),
		Password: os.Getenv(EnvPassword),
	}
	return creds, creds.Validate()
}

// Validate reports which required values are missing.
func (c Credentials) Validate() error {
	var missing []string
	if c.Username == "" {
		missing = append(missing, EnvUsername)
	}
	if c.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// String redacts the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: <redacted>}", c.Username)
}
