// Copyright 2024 The CNFS Authors.
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

// Package config holds the tunables of the VFS layer. Defaults are
// compile-time constants; deployments may override them from a TOML file.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Compile-time defaults.
const (
	// DefaultPageSize is the page cache granularity in bytes.
	DefaultPageSize = 512

	// DefaultMaxPages bounds the number of resident pages per vinode.
	DefaultMaxPages = 64

	// DefaultDCacheSize bounds the total number of cached dentries.
	DefaultDCacheSize = 64

	// DefaultFileBufferSize is the per-handle write buffer limit in bytes.
	DefaultFileBufferSize = 4096
)

// Config collects the VFS tunables.
type Config struct {
	// PageSize is the vinode page cache granularity in bytes.
	PageSize int `toml:"page_size"`

	// MaxPages is the maximum number of pages resident in one vinode.
	MaxPages int `toml:"max_pages"`

	// DCacheSize is the maximum total number of cached dentries.
	DCacheSize int `toml:"dcache_size"`

	// FileBufferSize is the per-handle write buffer limit in bytes.
	FileBufferSize int `toml:"file_buffer_size"`
}

// Default returns a Config populated with the compile-time defaults.
func Default() *Config {
	return &Config{
		PageSize:       DefaultPageSize,
		MaxPages:       DefaultMaxPages,
		DCacheSize:     DefaultDCacheSize,
		FileBufferSize: DefaultFileBufferSize,
	}
}

// Load reads TOML overrides from path on top of the defaults and validates
// the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: decoding %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the caching layers rely on.
func (c *Config) Validate() error {
	if c.PageSize <= 0 {
		return errors.Errorf("config: page_size must be positive, got %d", c.PageSize)
	}
	if c.MaxPages < 2 {
		// Eviction needs at least one victim candidate besides the page
		// being loaded.
		return errors.Errorf("config: max_pages must be at least 2, got %d", c.MaxPages)
	}
	if c.DCacheSize <= 0 {
		return errors.Errorf("config: dcache_size must be positive, got %d", c.DCacheSize)
	}
	if c.FileBufferSize <= 0 {
		return errors.Errorf("config: file_buffer_size must be positive, got %d", c.FileBufferSize)
	}
	return nil
}
