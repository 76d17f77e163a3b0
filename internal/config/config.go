// Package config loads canon configuration files.
//
// Files are CUE (plain JSON is valid CUE). A file is unified with an
// embedded closed schema that supplies defaults, so unknown fields and
// out-of-range values are rejected before anything is decoded.
package config

import (
	_ "embed"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/cockroachdb/errors"

	"github.com/roach88/canon/internal/logging"
	"github.com/roach88/canon/internal/oracle"
)

//go:embed schema.cue
var schemaSrc string

// ErrInvalid marks configuration that does not satisfy the schema.
var ErrInvalid = errors.New("invalid configuration")

// Oracle kinds.
const (
	OracleNone  = "none"
	OracleRules = "rules"
	OracleWasm  = "wasm"
)

// Config is the decoded configuration.
type Config struct {
	Log     LogConfig
	Store   StoreConfig
	Guard   GuardConfig
	Oracle  OracleConfig
	Metrics MetricsConfig
}

type LogConfig struct {
	Level string
	JSON  bool
}

type StoreConfig struct {
	Path string
}

type GuardConfig struct {
	StaleAfter time.Duration
}

type OracleConfig struct {
	Kind     string
	WasmPath string
	Timeout  time.Duration
	Breaker  BreakerConfig
}

// BreakerConfig configures the availability breaker in front of the oracle.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

type MetricsConfig struct {
	Namespace string
}

// file mirrors the schema for decoding.
type file struct {
	Log struct {
		Level string `json:"level"`
		JSON  bool   `json:"json"`
	} `json:"log"`
	Store struct {
		Path string `json:"path"`
	} `json:"store"`
	Guard struct {
		StaleAfter string `json:"stale_after"`
	} `json:"guard"`
	Oracle struct {
		Kind     string `json:"kind"`
		WasmPath string `json:"wasm_path"`
		Timeout  string `json:"timeout"`
		Breaker  struct {
			MaxRequests  uint32  `json:"max_requests"`
			Interval     string  `json:"interval"`
			Timeout      string  `json:"timeout"`
			FailureRatio float64 `json:"failure_ratio"`
			MinRequests  uint32  `json:"min_requests"`
		} `json:"breaker"`
	} `json:"oracle"`
	Metrics struct {
		Namespace string `json:"namespace"`
	} `json:"metrics"`
}

// Default returns the configuration of an empty file.
func Default() Config {
	c, err := Parse(nil, "default")
	if err != nil {
		panic(errors.Wrap(err, "embedded config schema"))
	}
	return c
}

// Load reads the file at path. An empty path or a missing file yields Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	return Parse(data, path)
}

// Parse validates src against the schema and decodes it. filename is used in
// error positions only.
func Parse(src []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return Config{}, errors.Wrap(err, "compile config schema")
	}

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, invalid(err, filename)
	}

	value := schema.Unify(user)
	if err := value.Validate(); err != nil {
		return Config{}, invalid(err, filename)
	}

	var f file
	if err := value.Decode(&f); err != nil {
		return Config{}, invalid(err, filename)
	}
	return f.resolve(filename)
}

func (f file) resolve(filename string) (Config, error) {
	c := Config{
		Log:   LogConfig{Level: f.Log.Level, JSON: f.Log.JSON},
		Store: StoreConfig{Path: f.Store.Path},
		Oracle: OracleConfig{
			Kind:     f.Oracle.Kind,
			WasmPath: f.Oracle.WasmPath,
			Breaker: BreakerConfig{
				MaxRequests:  f.Oracle.Breaker.MaxRequests,
				FailureRatio: f.Oracle.Breaker.FailureRatio,
				MinRequests:  f.Oracle.Breaker.MinRequests,
			},
		},
		Metrics: MetricsConfig{Namespace: f.Metrics.Namespace},
	}

	durations := []struct {
		field string
		src   string
		dst   *time.Duration
	}{
		{"guard.stale_after", f.Guard.StaleAfter, &c.Guard.StaleAfter},
		{"oracle.timeout", f.Oracle.Timeout, &c.Oracle.Timeout},
		{"oracle.breaker.interval", f.Oracle.Breaker.Interval, &c.Oracle.Breaker.Interval},
		{"oracle.breaker.timeout", f.Oracle.Breaker.Timeout, &c.Oracle.Breaker.Timeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.src)
		if err != nil || v <= 0 {
			return Config{}, errors.Mark(
				errors.WithHint(
					errors.Newf("%s: %s: %q is not a positive duration", filename, d.field, d.src),
					`use a Go duration such as "90s" or "720h"`,
				),
				ErrInvalid,
			)
		}
		*d.dst = v
	}

	if c.Oracle.Kind == OracleWasm && c.Oracle.WasmPath == "" {
		return Config{}, errors.Mark(
			errors.Newf("%s: oracle.wasm_path is required when oracle.kind is %q", filename, OracleWasm),
			ErrInvalid,
		)
	}
	return c, nil
}

func invalid(err error, filename string) error {
	return errors.Mark(
		errors.Newf("%s: %s", filename, cueerrors.Details(err, nil)),
		ErrInvalid,
	)
}

// LoggingOptions returns the logger options for c.
func (c Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, JSON: c.Log.JSON}
}

// OracleSettings returns the Guarded settings for c.
func (c Config) OracleSettings() oracle.Settings {
	return oracle.Settings{
		Name:         "consistency-oracle",
		Timeout:      c.Oracle.Timeout,
		MaxRequests:  c.Oracle.Breaker.MaxRequests,
		Interval:     c.Oracle.Breaker.Interval,
		OpenTimeout:  c.Oracle.Breaker.Timeout,
		FailureRatio: c.Oracle.Breaker.FailureRatio,
		MinRequests:  c.Oracle.Breaker.MinRequests,
	}
}
