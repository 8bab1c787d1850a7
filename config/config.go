// Package config loads sanews.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sagarsiwach/sanews-autofit/fit"
	"github.com/sagarsiwach/sanews-autofit/oracle"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "sanews.toml"

// Duration decodes TOML strings such as "60s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Oracle struct {
	Provider  string   `toml:"provider"`
	Model     string   `toml:"model"`
	MaxTokens int      `toml:"max_tokens"`
	APIURL    string   `toml:"api_url"`
	BaseURL   string   `toml:"base_url"`
	Timeout   Duration `toml:"timeout"`
}

type Fit struct {
	MaxIterations int     `toml:"max_iterations"`
	Tolerance     float64 `toml:"tolerance"`
}

type Paths struct {
	CredentialDir string `toml:"credential_dir"`
	FontDir       string `toml:"font_dir"`
}

type Server struct {
	Addr string `toml:"addr"`
}

// Config is the whole file.
type Config struct {
	Oracle Oracle `toml:"oracle"`
	Fit    Fit    `toml:"fit"`
	Paths  Paths  `toml:"paths"`
	Server Server `toml:"server"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Oracle: Oracle{
			Provider:  oracle.ProviderAnthropic,
			Model:     oracle.DefaultModel,
			MaxTokens: oracle.DefaultMaxTokens,
			APIURL:    oracle.DefaultAnthropicURL,
			Timeout:   Duration{oracle.DefaultTimeout},
		},
		Fit: Fit{
			MaxIterations: fit.DefaultMaxIterations,
			Tolerance:     fit.DefaultTolerance,
		},
		Server: Server{Addr: "127.0.0.1:8787"},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// path is empty or the default file name.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != "" && path != DefaultFile
	if path == "" {
		path = DefaultFile
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch strings.ToLower(c.Oracle.Provider) {
	case oracle.ProviderAnthropic, oracle.ProviderOpenAI, oracle.ProviderMock:
	default:
		return fmt.Errorf("unknown provider %q", c.Oracle.Provider)
	}
	if c.Oracle.MaxTokens <= 0 {
		return errors.New("max_tokens must be positive")
	}
	if c.Oracle.Timeout.Duration <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Fit.MaxIterations <= 0 {
		return errors.New("max_iterations must be positive")
	}
	if c.Fit.Tolerance <= 0 {
		return errors.New("tolerance must be positive")
	}
	return nil
}

// OracleSettings builds provider settings for apiKey.
func (c Config) OracleSettings(apiKey string) oracle.Settings {
	return oracle.Settings{
		Provider:  c.Oracle.Provider,
		APIKey:    apiKey,
		Model:     c.Oracle.Model,
		MaxTokens: c.Oracle.MaxTokens,
		Endpoint:  c.Oracle.APIURL,
		BaseURL:   c.Oracle.BaseURL,
		Timeout:   c.Oracle.Timeout.Duration,
	}
}

// FitOptions returns the controller limits; the logger is left to the caller.
func (c Config) FitOptions() fit.Options {
	return fit.Options{MaxIterations: c.Fit.MaxIterations, Tolerance: c.Fit.Tolerance}
}
