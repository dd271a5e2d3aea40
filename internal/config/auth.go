package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Authorization modes.
const (
	AuthModeJWT  = "jwt"
	AuthModeNone = "none"
)

// AuthConfig configures where the poller's authorization comes from.
// In jwt mode tokens are verified with either the HMAC secret or the RSA
// public key; the token comes from Token or, when set, from TokenFile, which
// is watched for rotation. In none mode the poller is authorized at startup.
type AuthConfig struct {
	Mode          string `yaml:"mode"`
	Token         string `yaml:"token"`
	TokenFile     string `yaml:"token_file"`
	Secret        string `yaml:"secret"`
	PublicKeyFile string `yaml:"public_key_file"`
	Issuer        string `yaml:"issuer"`
}

// DefaultAuthConfig returns the default auth configuration.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{Mode: AuthModeNone}
}

func (c *AuthConfig) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = AuthModeNone
	}
}

// ApplyEnvOverrides reads the token from FEEDWATCH_TOKEN.
func (c *AuthConfig) ApplyEnvOverrides() {
	if v := os.Getenv("FEEDWATCH_TOKEN"); v != "" {
		c.Token = v
	}
}

func (c *AuthConfig) ResolvePaths(configDir string) {
	for _, p := range []*string{&c.PublicKeyFile, &c.TokenFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

func (c *AuthConfig) Validate() error {
	switch c.Mode {
	case AuthModeNone:
		return nil
	case AuthModeJWT:
		if c.Secret == "" && c.PublicKeyFile == "" {
			return fmt.Errorf("auth.secret or auth.public_key_file is required in jwt mode")
		}
		return nil
	default:
		return fmt.Errorf("unknown auth mode %q (must be %s or %s)", c.Mode, AuthModeJWT, AuthModeNone)
	}
}
