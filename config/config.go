// Package config loads and saves the engine's Parameters as an INI file,
// grounded on the teacher's go.mod dependency on github.com/go-ini/ini
// (pulled in there transitively through the AWS SDK's credentials-file
// parser; used here directly for its stated purpose). Everything lives
// under a single "[Index]" section.
package config

import (
	"fmt"
	"io"

	"github.com/go-ini/ini"

	"github.com/hybridann/hybridann/engine"
)

// Load parses an INI document from r and applies every key=value line
// within an "[Index]" section onto a copy of engine.DefaultParameters.
// Unknown keys are rejected, keeping a typo in a config file from being
// silently ignored.
func Load(r io.Reader) (engine.Parameters, error) {
	params := engine.DefaultParameters()

	cfg, err := ini.Load(r)
	if err != nil {
		return params, fmt.Errorf("config: %w", err)
	}

	section, err := cfg.GetSection(engine.IndexSection)
	if err != nil {
		// No [Index] section at all is not an error: the defaults stand.
		return params, nil
	}

	for _, key := range section.Keys() {
		if err := params.Set(key.Name(), key.Value()); err != nil {
			return params, fmt.Errorf("config: %s: %w", key.Name(), err)
		}
	}
	return params, nil
}

// LoadFile opens path and parses it via Load.
func LoadFile(path string) (engine.Parameters, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return engine.Parameters{}, fmt.Errorf("config: %w", err)
	}
	params := engine.DefaultParameters()

	section, err := cfg.GetSection(engine.IndexSection)
	if err != nil {
		return params, nil
	}
	for _, key := range section.Keys() {
		if err := params.Set(key.Name(), key.Value()); err != nil {
			return params, fmt.Errorf("config: %s: %w", key.Name(), err)
		}
	}
	return params, nil
}

// Save writes params as an INI document with a single "[Index]" section,
// one key=value line per registered parameter, in declaration order.
func Save(w io.Writer, params engine.Parameters) error {
	cfg := ini.Empty()
	section, err := cfg.NewSection(engine.IndexSection)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, name := range params.Names() {
		value, err := params.Get(name)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if _, err := section.NewKey(name, value); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	_, err = cfg.WriteTo(w)
	return err
}

// SaveFile writes params to path as an INI document via Save.
func SaveFile(path string, params engine.Parameters) error {
	cfg := ini.Empty()
	section, err := cfg.NewSection(engine.IndexSection)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, name := range params.Names() {
		value, err := params.Get(name)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if _, err := section.NewKey(name, value); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return cfg.SaveTo(path)
}
