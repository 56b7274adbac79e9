// Package config loads and validates the shell's YAML configuration.
package config

import (
	_ "embed"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

// Configuration holds everything tunable about the shell and its SSH
// front door.
type Configuration struct {
	// Motd is printed once at the start of an interactive session.
	Motd string `json:"motd"`
	// Hostname reported by the virtual OS and the prompt.
	Hostname string `json:"hostname" validate:"required,hostname_rfc1123"`
	// Prompt overrides PS1 when set.
	Prompt string `json:"prompt"`
	// DefaultPath seeds PATH for sessions that start without one.
	DefaultPath string `json:"default_path" validate:"required"`
	// HistoryFile is where the interactive history is persisted.
	// Empty disables persistence.
	HistoryFile string `json:"history_file"`

	SSH SSH `json:"ssh"`
}

// SSH configures the serve mode listener.
type SSH struct {
	Port        int    `json:"port" validate:"gte=0,lte=65535"`
	HostKeyPath string `json:"host_key_path"`
	Banner      string `json:"banner"`
	// MaxBytesPerSecond rate limits each session's streams.
	// Zero means unlimited.
	MaxBytesPerSecond int64 `json:"max_bytes_per_second" validate:"gte=0"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})

	return validate.Struct(c)
}

// Default returns the embedded configuration.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Load reads and validates a configuration file. An empty path loads
// the embedded default.
func Load(fs afero.Fs, path string) (*Configuration, error) {
	if path == "" {
		return Default(), nil
	}

	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var out Configuration
	if err := yaml.UnmarshalStrict(contents, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}
