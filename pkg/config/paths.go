// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config resolves amplifier's home directory, cache layout, and
// environment-backed settings.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Environment variable names consumed by the core.
const (
	EnvHome      = "AMPLIFIER_HOME"
	EnvGitMirror = "AMPLIFIER_GIT_MIRROR"

	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// HomeDir returns the amplifier home directory.
//
// Priority:
//  1. AMPLIFIER_HOME environment variable (if set and non-empty)
//  2. ~/.amplifier (default)
//
// The returned path is always absolute. Tilde (~) is expanded to the user's
// home directory; relative paths are made absolute against the current
// directory.
//
// Note: this reads os.Getenv directly rather than viper so it can run
// during bootstrap, before settings are loaded.
func HomeDir() string {
	if home := os.Getenv(EnvHome); home != "" {
		return expandPath(home)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".amplifier"
	}
	return filepath.Join(homeDir, ".amplifier")
}

// CacheDir returns the resolved-source cache directory under the home dir.
func CacheDir() string {
	return filepath.Join(HomeDir(), "cache")
}

// InstallStatePath returns the location of the module install-state record.
func InstallStatePath() string {
	return filepath.Join(CacheDir(), "install-state.json")
}

// GitMirrorHost returns the configured git mirror host, or empty when no
// mirror is requested.
func GitMirrorHost() string {
	return os.Getenv(EnvGitMirror)
}

// Settings is the viper-backed view of amplifier's ambient configuration.
// Provider credentials and the home override are bound to their environment
// variables; front ends may additionally point viper at a settings file.
type Settings struct {
	v *viper.Viper
}

// NewSettings creates a Settings bound to the amplifier environment.
func NewSettings() *Settings {
	v := viper.New()
	v.SetDefault("home", HomeDir())
	_ = v.BindEnv("home", EnvHome)
	_ = v.BindEnv("git_mirror", EnvGitMirror)
	_ = v.BindEnv("anthropic_api_key", EnvAnthropicAPIKey)
	_ = v.BindEnv("openai_api_key", EnvOpenAIAPIKey)
	return &Settings{v: v}
}

// Home returns the configured home directory.
func (s *Settings) Home() string { return expandPath(s.v.GetString("home")) }

// GitMirror returns the configured git mirror host, if any.
func (s *Settings) GitMirror() string { return s.v.GetString("git_mirror") }

// AnthropicAPIKey returns the Anthropic credential, if set.
func (s *Settings) AnthropicAPIKey() string { return s.v.GetString("anthropic_api_key") }

// OpenAIAPIKey returns the OpenAI credential, if set.
func (s *Settings) OpenAIAPIKey() string { return s.v.GetString("openai_api_key") }

// Viper exposes the underlying viper for front ends that layer settings
// files on top of the environment bindings.
func (s *Settings) Viper() *viper.Viper { return s.v }

// expandPath expands ~ and resolves to an absolute path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
