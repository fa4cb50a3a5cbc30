package main

import (
	"errors"
	"fmt"
	"strings"

	authsession "github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/internal/confloader"
	"github.com/MrEthical07/authsession/internal/logging"
	"github.com/MrEthical07/authsession/provider/identitytoolkit"
	"github.com/MrEthical07/authsession/provider/local"
)

const (
	providerLocal           = "local"
	providerIdentityToolkit = "identitytoolkit"
)

type fileConfig struct {
	Log      logging.Config     `koanf:"log"`
	Redis    redisConfig        `koanf:"redis"`
	Provider providerConfig     `koanf:"provider"`
	OneTap   oneTapConfig       `koanf:"one_tap"`
	Auth     authsession.Config `koanf:"auth"`
}

// redisConfig enables the Redis session store and limiter when Addr is set.
type redisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type providerConfig struct {
	Kind            string                `koanf:"kind"`
	Local           localConfig           `koanf:"local"`
	IdentityToolkit identityToolkitConfig `koanf:"identitytoolkit"`
}

type localConfig struct {
	Hash  local.HashConfig `koanf:"hash"`
	Users []localUser      `koanf:"users"`
}

type localUser struct {
	ID           string `koanf:"id"`
	Email        string `koanf:"email"`
	PasswordHash string `koanf:"password_hash"`
	Disabled     bool   `koanf:"disabled"`
}

type identityToolkitConfig struct {
	BaseURL    string `koanf:"base_url"`
	APIKey     string `koanf:"api_key"`
	RequestURI string `koanf:"request_uri"`
}

// oneTapConfig is the account offered by the local one-tap picker.
type oneTapConfig struct {
	ProviderID string `koanf:"provider_id"`
	Subject    string `koanf:"subject"`
	Email      string `koanf:"email"`
	Name       string `koanf:"name"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Log: logging.Config{Level: "warn", Format: "text"},
		Provider: providerConfig{
			Kind:  providerLocal,
			Local: localConfig{Hash: local.DefaultHashConfig()},
			IdentityToolkit: identityToolkitConfig{
				BaseURL: identitytoolkit.DefaultBaseURL,
			},
		},
		OneTap: oneTapConfig{ProviderID: "local"},
		Auth:   authsession.DefaultConfig(),
	}
}

func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(&cfg); err != nil {
		return fileConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return fileConfig{}, err
	}
	return cfg, nil
}

func (c fileConfig) validate() error {
	switch strings.ToLower(c.Provider.Kind) {
	case providerLocal:
	case providerIdentityToolkit:
		if c.Provider.IdentityToolkit.APIKey == "" {
			return errors.New("provider.identitytoolkit.api_key is required")
		}
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}
