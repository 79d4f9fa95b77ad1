package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// ProjectDir is used to locate .gatekeeper/config.toml. Defaults to CWD when empty.
	ProjectDir string
	// ConfigPath overrides the project config path if provided.
	ConfigPath string
	// FlagOverrides are highest-priority overrides from CLI flags (dot-notated keys).
	FlagOverrides map[string]any
}

// Load returns the effective configuration after applying precedence:
// defaults < user (~/.gatekeeper/config.toml) < project (.gatekeeper/config.toml) < env (GATEKEEPER_*) < flags.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	projectDir := opts.ProjectDir
	if projectDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			projectDir = cwd
		}
	}

	if err := mergeConfigFile(v, userConfigPath()); err != nil {
		return Config{}, err
	}
	if err := mergeConfigFile(v, projectConfigPath(projectDir, opts.ConfigPath)); err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(v); err != nil {
		return Config{}, err
	}
	applyFlagOverrides(v, opts.FlagOverrides)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults seeds viper with built-in defaults.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("policy.allowlist_path", def.Policy.AllowListPath)
	v.SetDefault("policy.risk_profiles_path", def.Policy.RiskProfilesPath)

	v.SetDefault("ledger.backend", def.Ledger.Backend)
	v.SetDefault("ledger.path", def.Ledger.Path)
	v.SetDefault("ledger.key_scope", def.Ledger.KeyScope)

	v.SetDefault("execution.timeout_seconds", def.Execution.TimeoutSecs)
	v.SetDefault("execution.work_dir", def.Execution.WorkDir)
	v.SetDefault("execution.log_dir", def.Execution.LogDir)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.file", def.Logging.File)

	v.SetDefault("output.format", def.Output.Format)
	v.SetDefault("output.color", def.Output.Color)
}

// mergeConfigFile merges the TOML config file if it exists.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides reads GATEKEEPER_* env vars and applies them.
func applyEnvOverrides(v *viper.Viper) error {
	for _, binding := range envBindings {
		val := os.Getenv(binding.Env)
		if val == "" {
			continue
		}
		parsed, err := parseValueByKind(val, binding.Kind)
		if err != nil {
			return fmt.Errorf("env %s: %w", binding.Env, err)
		}
		v.Set(binding.Key, parsed)
	}
	return nil
}

// applyFlagOverrides applies CLI overrides as highest-precedence values.
func applyFlagOverrides(v *viper.Viper, overrides map[string]any) {
	for k, val := range overrides {
		v.Set(k, val)
	}
}

// ConfigPaths returns the user and project config file paths.
func ConfigPaths(projectDir, configOverride string) (string, string) {
	return userConfigPath(), projectConfigPath(projectDir, configOverride)
}

func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gatekeeper", "config.toml")
}

func projectConfigPath(projectDir, override string) string {
	if override != "" {
		return override
	}
	if projectDir == "" {
		return ".gatekeeper/config.toml"
	}
	return filepath.Join(projectDir, ".gatekeeper", "config.toml")
}

// ParseValue parses a raw string into the expected type for a given config key.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("unsupported key %q", key)
	}
	return parseValueByKind(raw, kind)
}

// Keys returns every settable config key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetValue retrieves a dot-notated value from the Config.
func GetValue(cfg Config, key string) (any, bool) {
	segments := strings.Split(key, ".")
	var current any = cfg
	for _, seg := range segments {
		switch c := current.(type) {
		case Config:
			switch seg {
			case "policy":
				current = c.Policy
			case "ledger":
				current = c.Ledger
			case "execution":
				current = c.Execution
			case "logging":
				current = c.Logging
			case "output":
				current = c.Output
			default:
				return nil, false
			}
		case PolicyConfig:
			switch seg {
			case "allowlist_path":
				return c.AllowListPath, true
			case "risk_profiles_path":
				return c.RiskProfilesPath, true
			default:
				return nil, false
			}
		case LedgerConfig:
			switch seg {
			case "backend":
				return c.Backend, true
			case "path":
				return c.Path, true
			case "key_scope":
				return c.KeyScope, true
			default:
				return nil, false
			}
		case ExecutionConfig:
			switch seg {
			case "timeout_seconds":
				return c.TimeoutSecs, true
			case "work_dir":
				return c.WorkDir, true
			case "log_dir":
				return c.LogDir, true
			default:
				return nil, false
			}
		case LoggingConfig:
			switch seg {
			case "level":
				return c.Level, true
			case "file":
				return c.File, true
			default:
				return nil, false
			}
		case OutputConfig:
			switch seg {
			case "format":
				return c.Format, true
			case "color":
				return c.Color, true
			default:
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return current, true
}

// WriteValue sets a single key/value into the specified TOML config file (creating it if needed).
func WriteValue(path, key string, value any) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	var existing map[string]any
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &existing); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		if existing == nil {
			existing = map[string]any{}
		}
	} else {
		existing = map[string]any{}
	}

	if err := setNested(existing, key, value); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = "  "
	if err := enc.Encode(existing); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

func setNested(m map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	cur := m
	for i, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid key %q", key)
		}
		if i == len(parts)-1 {
			cur[p] = value
			return nil
		}
		next, ok := cur[p]
		if !ok {
			child := map[string]any{}
			cur[p] = child
			cur = child
			continue
		}
		childMap, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %s: %s is not a table", key, strings.Join(parts[:i+1], "."))
		}
		cur = childMap
	}
	return nil
}

// Helpers for env + parsing ---------------------------------------------------

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
)

var keyKinds = map[string]valueKind{
	"policy.allowlist_path":     kindString,
	"policy.risk_profiles_path": kindString,

	"ledger.backend":   kindString,
	"ledger.path":      kindString,
	"ledger.key_scope": kindString,

	"execution.timeout_seconds": kindInt,
	"execution.work_dir":        kindString,
	"execution.log_dir":         kindString,

	"logging.level": kindString,
	"logging.file":  kindString,

	"output.format": kindString,
	"output.color":  kindBool,
}

var envBindings = []struct {
	Env  string
	Key  string
	Kind valueKind
}{
	{"GATEKEEPER_ALLOWLIST", "policy.allowlist_path", kindString},
	{"GATEKEEPER_RISK_PROFILES", "policy.risk_profiles_path", kindString},

	{"GATEKEEPER_LEDGER_BACKEND", "ledger.backend", kindString},
	{"GATEKEEPER_LEDGER_PATH", "ledger.path", kindString},
	{"GATEKEEPER_KEY_SCOPE", "ledger.key_scope", kindString},

	{"GATEKEEPER_TIMEOUT", "execution.timeout_seconds", kindInt},
	{"GATEKEEPER_WORK_DIR", "execution.work_dir", kindString},
	{"GATEKEEPER_EXEC_LOG_DIR", "execution.log_dir", kindString},

	{"GATEKEEPER_LOG_LEVEL", "logging.level", kindString},
	{"GATEKEEPER_LOG_FILE", "logging.file", kindString},

	{"GATEKEEPER_OUTPUT", "output.format", kindString},
	{"GATEKEEPER_COLOR", "output.color", kindBool},
}

func parseValueByKind(raw string, kind valueKind) (any, error) {
	switch kind {
	case kindString:
		return raw, nil
	case kindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected boolean: %w", err)
		}
		return v, nil
	case kindInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("expected integer: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported value kind")
	}
}
