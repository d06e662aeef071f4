package engine

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/joho/godotenv"
)

type Config struct {
	// Engine selects the evaluator backend, TypeEngineGoja or TypeEngineJs.
	// TypeEngineJs runs ES5 only: Target must be "es5", and sources may not
	// use let, const, class or other syntax esbuild cannot lower to ES5.
	Engine      string
	ScriptDir   string
	CompiledExt string
	// Target is the ES version emitted code must run on, e.g. "es2017".
	Target           string
	CompileCacheSize int
	LogLevel         string
	// IgnorePaths are path prefixes the host driver never pulls.
	IgnorePaths []string
}

func DefaultConfig() Config {
	return Config{
		Engine:           TypeEngineGoja,
		ScriptDir:        DefaultScriptDir,
		CompiledExt:      DefaultCompiledExt,
		Target:           "es2017",
		CompileCacheSize: 256,
		LogLevel:         "info",
	}
}

// LoadConfig reads a .env file when present and overlays SCRIPT_* variables
// on DefaultConfig.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.Engine = firstNonEmpty(strings.TrimSpace(os.Getenv("SCRIPT_ENGINE")), cfg.Engine)
	cfg.ScriptDir = firstNonEmpty(strings.TrimSpace(os.Getenv("SCRIPT_DIR")), cfg.ScriptDir)
	cfg.CompiledExt = firstNonEmpty(strings.TrimSpace(os.Getenv("SCRIPT_COMPILED_EXT")), cfg.CompiledExt)
	if cfg.Engine == TypeEngineJs {
		cfg.Target = "es5"
	}
	cfg.Target = firstNonEmpty(strings.TrimSpace(os.Getenv("SCRIPT_TARGET")), cfg.Target)
	cfg.LogLevel = firstNonEmpty(strings.TrimSpace(os.Getenv("SCRIPT_LOG_LEVEL")), cfg.LogLevel)

	if raw := strings.TrimSpace(os.Getenv("SCRIPT_COMPILE_CACHE")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("parse SCRIPT_COMPILE_CACHE: %w", err)
		}
		cfg.CompileCacheSize = n
	}
	if raw := os.Getenv("SCRIPT_IGNORE"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.IgnorePaths = append(cfg.IgnorePaths, p)
			}
		}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Engine {
	case TypeEngineGoja, TypeEngineJs:
	default:
		return fmt.Errorf("unknown script engine %q", c.Engine)
	}
	target, err := ParseTarget(c.Target)
	if err != nil {
		return err
	}
	if c.Engine == TypeEngineJs && target != api.ES5 {
		return fmt.Errorf("script engine %q only runs es5, got target %q", c.Engine, c.Target)
	}
	if !strings.HasPrefix(c.CompiledExt, ".") {
		return fmt.Errorf("compiled extension %q must start with a dot", c.CompiledExt)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
