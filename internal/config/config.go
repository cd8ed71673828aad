// Package config loads server configuration with koanf: defaults, then an
// optional YAML file, then KNITSCRIPT_MCP_* environment variables, then
// command-line flags, each layer overriding the previous one.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// envPrefix is the prefix for environment overrides,
// e.g. KNITSCRIPT_MCP_STAGING_DIR.
const envPrefix = "KNITSCRIPT_MCP_"

// converterScriptName is the filename of the Node converter script.
const converterScriptName = "knitout-to-dat.js"

// Config holds every externally injected setting. StagingDir is resolved
// once at load time and passed into components at construction; nothing
// re-derives it per call.
type Config struct {
	StagingDir      string `koanf:"staging_dir"`
	CompilerCommand string `koanf:"compiler_command"`
	NodeCommand     string `koanf:"node_command"`
	ConverterScript string `koanf:"converter_script"`
	LogLevel        string `koanf:"log_level"`
}

// Load builds the configuration. cfgFile may be empty, in which case
// knitscript-mcp.yaml / .yml in the working directory is used when
// present. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"staging_dir":      "",
		"compiler_command": "knit-script",
		"node_command":     "node",
		"converter_script": "",
		"log_level":        "info",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if cfgFile == "" {
		for _, name := range []string{"knitscript-mcp.yaml", "knitscript-mcp.yml"} {
			if _, err := os.Stat(name); err == nil {
				cfgFile = name
				break
			}
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.StagingDir == "" {
		cfg.StagingDir = filepath.Join(installDir(), "tmp")
	}
	return &cfg, nil
}

// ScriptPaths returns the converter script candidates in probe order: an
// explicit override wins outright; otherwise the parent of the install
// directory is primary and the install directory itself the fallback.
func (c *Config) ScriptPaths() []string {
	if c.ConverterScript != "" {
		return []string{c.ConverterScript}
	}
	dir := installDir()
	return []string{
		filepath.Join(filepath.Dir(dir), converterScriptName),
		filepath.Join(dir, converterScriptName),
	}
}

// installDir is the directory holding the running binary.
func installDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
