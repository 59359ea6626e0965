// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads daemon configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete graphexecd configuration.
type Config struct {
	Server Server `yaml:"server"`
	Engine Engine `yaml:"engine"`
	Log    Log    `yaml:"log"`

	// Tracing enables span export to stdout.
	// Environment: GRAPHEXEC_TRACING
	Tracing bool `yaml:"tracing"`
}

// Server configures the HTTP listener.
type Server struct {
	// Addr is the listen address.
	// Environment: GRAPHEXEC_ADDR
	// Default: :8080
	Addr string `yaml:"addr,omitempty"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	// HeartbeatInterval is the SSE heartbeat period for event streams.
	// Default: 30s
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval,omitempty"`
}

// Engine configures workflow execution.
type Engine struct {
	// GraphsDir is the directory to search for graph definition files.
	// Graph files found at startup are registered before the server accepts
	// requests; changes are hot-reloaded while running.
	// Environment: GRAPHEXEC_GRAPHS_DIR
	GraphsDir string `yaml:"graphs_dir,omitempty"`

	// SubscriberBuffer is the event channel capacity per subscriber. A
	// subscriber that falls further behind starts losing events.
	// Default: 100
	SubscriberBuffer int `yaml:"subscriber_buffer,omitempty"`
}

// Log configures logging output.
type Log struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	// Environment: GRAPHEXEC_LOG_LEVEL
	// Default: info
	Level string `yaml:"level,omitempty"`

	// Format is json or text.
	// Environment: LOG_FORMAT
	// Default: json
	Format string `yaml:"format,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:              ":8080",
			ShutdownTimeout:   10 * time.Second,
			HeartbeatInterval: 30 * time.Second,
		},
		Engine: Engine{
			SubscriberBuffer: 100,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from path, fills defaults, and applies
// environment overrides. An empty path or missing file yields defaults plus
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if addr := os.Getenv("GRAPHEXEC_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if dir := os.Getenv("GRAPHEXEC_GRAPHS_DIR"); dir != "" {
		c.Engine.GraphsDir = dir
	}
	if level := os.Getenv("GRAPHEXEC_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
	if tracing := os.Getenv("GRAPHEXEC_TRACING"); tracing != "" {
		if enabled, err := strconv.ParseBool(tracing); err == nil {
			c.Tracing = enabled
		}
	}
}

// fillDefaults backstops zero values a config file may have cleared.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Server.HeartbeatInterval <= 0 {
		c.Server.HeartbeatInterval = def.Server.HeartbeatInterval
	}
	if c.Engine.SubscriberBuffer <= 0 {
		c.Engine.SubscriberBuffer = def.Engine.SubscriberBuffer
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}
