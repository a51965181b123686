// Package config provides layered configuration loading for concord.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix of environment variables read by Load.
	EnvPrefix = "CONCORD_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// ErrConfigFile is returned when a config file fails validation.
var ErrConfigFile = errors.New("config file rejected")

// DefaultPath returns ~/.config/concord/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "concord", "config.yaml"), nil
}

// Load fills target from a YAML file and then from CONCORD_* environment
// variables. target must be a pointer to a struct with koanf tags and
// should already hold defaults: keys absent from every source keep their
// value.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (CONCORD_POLICY_TREND_WINDOW, ...)
//  2. YAML config file
//  3. Values already in target
//
// An empty path loads DefaultPath if it exists. An explicit path must exist.
//
// # Environment Variable Mapping
//
// The prefix is stripped, the rest lower-cased and split on the first
// underscore into section and field. A double underscore inside the field
// descends one more level:
//
//	CONCORD_LOGGING_FORMAT           -> logging.format
//	CONCORD_HISTORY_MAX_DECISIONS    -> history.max_decisions
//	CONCORD_TELEMETRY_SAMPLING__RATE -> telemetry.sampling.rate
func Load(path string, target any) error {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	content, err := readConfigFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return err
	default:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.Unmarshal("", target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// envKey maps CONCORD_SECTION_FIELD to section.field.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, found := strings.Cut(lower, "_")
	if !found {
		return lower
	}
	return section + "." + strings.ReplaceAll(field, "__", ".")
}

// readConfigFile opens path once and validates the open descriptor, so the
// checked file is the file that is read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrConfigFile, maxConfigFileSize)
	}
	return content, nil
}

// validateConfigFileProperties rejects non-regular, oversized and
// world-writable files.
func validateConfigFileProperties(info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrConfigFile, info.Name())
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrConfigFile, info.Size(), maxConfigFileSize)
	}
	// Skip on Windows (different permission model)
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("%w: insecure permissions %v (world-writable)", ErrConfigFile, info.Mode().Perm())
	}
	return nil
}
