// Package config loads the per-API recording configuration.
//
// The configuration is a Java-style properties resource with entries of the
// form <api>.level=<level> and <api>.filepath=<path>. It is read once and is
// read-only afterwards.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/magiconair/properties"
	"github.com/spf13/afero"
)

const (
	// DefaultPath is the properties resource looked up when none is given.
	DefaultPath = "log.properties"

	DefaultLevel    = "info"
	DefaultFilepath = "default.log"

	levelSuffix    = ".level"
	filepathSuffix = ".filepath"
)

// Config maps property keys to values. The zero value is an empty config.
type Config struct {
	values map[string]string
}

// New returns a Config holding a copy of values.
func New(values map[string]string) Config {
	c := Config{values: make(map[string]string, len(values))}
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// Empty returns a Config with no entries; every lookup falls back to defaults.
func Empty() Config {
	return Config{}
}

// Lookup returns the raw value stored under key.
func (c Config) Lookup(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Level returns the configured level for api, or DefaultLevel.
func (c Config) Level(api string) string {
	if v, ok := c.Lookup(api + levelSuffix); ok {
		return v
	}
	return DefaultLevel
}

// Filepath returns the configured output path for api, or DefaultFilepath.
func (c Config) Filepath(api string) string {
	if v, ok := c.Lookup(api + filepathSuffix); ok {
		return v
	}
	return DefaultFilepath
}

// Len returns the number of entries.
func (c Config) Len() int {
	return len(c.values)
}

// APIs returns the sorted API identifiers that have at least one entry.
func (c Config) APIs() []string {
	seen := make(map[string]struct{})
	for k := range c.values {
		for _, suffix := range []string{levelSuffix, filepathSuffix} {
			if api, ok := strings.CutSuffix(k, suffix); ok {
				seen[api] = struct{}{}
			}
		}
	}
	apis := make([]string, 0, len(seen))
	for api := range seen {
		apis = append(apis, api)
	}
	sort.Strings(apis)
	return apis
}

// LoadError reports a configuration resource that is missing or unreadable.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Missing() {
		return fmt.Sprintf("log configuration %s not found", e.Path)
	}
	return fmt.Sprintf("failed to load log configuration %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Missing reports whether the resource does not exist.
func (e *LoadError) Missing() bool {
	return errors.Is(e.Err, fs.ErrNotExist)
}

// Load reads the properties resource at path from fsys.
// On failure it returns an empty Config together with a *LoadError.
func Load(fsys afero.Fs, path string) (Config, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return Empty(), &LoadError{Path: path, Err: err}
	}

	// Values are taken verbatim; ${key} references are not expanded.
	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadBytes(data)
	if err != nil {
		return Empty(), &LoadError{Path: path, Err: err}
	}

	return New(props.Map()), nil
}
