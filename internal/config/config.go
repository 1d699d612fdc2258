// Package config loads genisynth's runtime configuration (spec.md §6's
// enumerated Configuration) from a YAML file and environment variables
// via viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ChorusConfig mirrors spec.md §6's chorus parameters.
type ChorusConfig struct {
	DelayMS  float64 `mapstructure:"delay_ms"`
	DepthMS  float64 `mapstructure:"depth_ms"`
	RateHz   float64 `mapstructure:"rate_hz"`
	Feedback float64 `mapstructure:"feedback"`
}

// Config is spec.md §6's Configuration struct:
// { sampleRate, voiceCap, reverbEnabled, reverbImpulseResponse,
//   chorusEnabled, chorusConfig, initialChannelCount }. ReverbImpulsePath
// is carried as a plain string; no package in this module reads it, and
// the commands build their Synth without an impulse response.
type Config struct {
	SampleRate          float64      `mapstructure:"sample_rate"`
	VoiceCap            int          `mapstructure:"voice_cap"`
	ReverbEnabled       bool         `mapstructure:"reverb_enabled"`
	ReverbImpulsePath   string       `mapstructure:"reverb_impulse_path"`
	ChorusEnabled       bool         `mapstructure:"chorus_enabled"`
	Chorus              ChorusConfig `mapstructure:"chorus"`
	InitialChannelCount int          `mapstructure:"initial_channel_count"`
	LogLevel            string       `mapstructure:"log_level"`
	MIDIOutPort         string       `mapstructure:"midi_out_port"`
}

// Default returns spec.md §6's stated defaults.
func Default() Config {
	return Config{
		SampleRate:          44100,
		VoiceCap:            250,
		ReverbEnabled:       true,
		ChorusEnabled:       true,
		Chorus:              ChorusConfig{DelayMS: 20, DepthMS: 3, RateHz: 0.8, Feedback: 0.25},
		InitialChannelCount: 16,
		LogLevel:            "info",
	}
}

// Load reads configuration from cfgFile (if non-empty), a genisynth.yaml
// in the working directory or $HOME/.config/genisynth, and GENISYNTH_*
// environment variables, layered over Default().
func Load(cfgFile string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("genisynth")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys viper already knows.
	for _, key := range []string{
		"sample_rate", "voice_cap", "reverb_enabled", "reverb_impulse_path",
		"chorus_enabled", "chorus.delay_ms", "chorus.depth_ms", "chorus.rate_hz",
		"chorus.feedback", "initial_channel_count", "log_level", "midi_out_port",
	} {
		_ = v.BindEnv(key)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("genisynth")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/genisynth")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	return cfg, nil
}
