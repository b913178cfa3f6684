// SPDX-License-Identifier: Apache-2.0

// Package config loads CLI settings and reconciliation profiles.
//
// Settings come from, in order of precedence: command-line flags,
// KEYRECON_* environment variables, a .env file, a .keyrecon.yaml config
// file and struct tag defaults.
//
//	settings, err := config.Load(".", cmd.Flags())
//	profile, err := config.LoadProfile(settings.Profile)
//	opts, err := profile.Options(test)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by [Load].
const EnvPrefix = "KEYRECON"

// Settings holds the CLI configuration.
type Settings struct {
	// Log configures the zerolog logger.
	Log LogSettings `mapstructure:"log"`
	// Profile is the path of the reconciliation profile.
	Profile string `mapstructure:"profile" default:""`
	// Format is the output format; empty keeps the test document's format.
	Format string `mapstructure:"format" default:""`
	// StrictOrder makes collection comparison order-sensitive.
	StrictOrder bool `mapstructure:"strict_order" default:"false"`
	// ConfigFile is the config file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

// LogSettings configures logging.
type LogSettings struct {
	Level   string `mapstructure:"level" default:"info"`
	Format  string `mapstructure:"format" default:"auto"`
	Output  string `mapstructure:"output" default:"stderr"`
	NoColor bool   `mapstructure:"no_color" default:"false"`
}

// flagKeys maps CLI flag names to settings keys.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"log-output":   "log.output",
	"no-color":     "log.no_color",
	"profile":      "profile",
	"format":       "format",
	"strict-order": "strict_order",
}

// Load reads settings for a run in dir. flags may be nil; flags that are
// registered are bound so that explicitly set values take precedence. A
// "config" flag, when set, names the config file to read.
func Load(dir string, flags *pflag.FlagSet) (*Settings, error) {
	// the .env file is optional, but a present one must parse
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	bindDefaults(v, Settings{}, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var configFile string
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName(".keyrecon")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	s.ConfigFile = v.ConfigFileUsed()
	return &s, nil
}

// bindDefaults registers every mapstructure key with its default tag so
// AutomaticEnv can find it.
func bindDefaults(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindDefaults(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
