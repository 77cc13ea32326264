package preexec

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/interp"
)

const (
	DefaultMaxMemoryBytes = 64 << 20

	patternTimeout = 100 * time.Millisecond
)

// DefaultIgnoreCalls matches atexit-style registrations. Destructors never
// run during pre-execution, so registering one has no observable effect.
var DefaultIgnoreCalls = []string{`^__cxa_atexit$`, `^atexit$`}

// Config holds driver configuration.
type Config struct {
	// Logger overrides the package logger for this driver.
	Logger *zap.Logger `yaml:"-"`

	// IgnoreCalls are patterns naming external functions whose calls are
	// skipped and return zero instead of deferring the constructor.
	IgnoreCalls []string `yaml:"ignore_calls"`

	// MaxSteps bounds instructions per constructor; 0 disables the bound.
	MaxSteps int64 `yaml:"max_steps"`

	// MaxCallDepth bounds call nesting per constructor; 0 disables it.
	MaxCallDepth int `yaml:"max_call_depth"`

	// MaxMemoryBytes bounds live heap and stack bytes per constructor.
	MaxMemoryBytes uint64 `yaml:"max_memory_bytes"`

	// StopOnDefer stops folding after the first deferred constructor, so
	// no constructor is folded past one that will still run at startup.
	// Turning it off folds later constructors too; that is only sound when
	// they share no state with the deferred ones.
	StopOnDefer bool `yaml:"stop_on_defer"`

	// CollapseZero emits a zero initializer for all-zero aggregates.
	CollapseZero bool `yaml:"collapse_zero"`
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{
		IgnoreCalls:    append([]string(nil), DefaultIgnoreCalls...),
		MaxSteps:       interp.DefaultMaxSteps,
		MaxCallDepth:   interp.DefaultMaxCallDepth,
		MaxMemoryBytes: DefaultMaxMemoryBytes,
		StopOnDefer:    true,
		CollapseZero:   true,
	}
}

// Validate checks limits and compiles the ignore patterns.
func (c Config) Validate() error {
	if c.MaxSteps < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "max_steps must not be negative")
	}
	if c.MaxCallDepth < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "max_call_depth must not be negative")
	}
	_, err := compilePatterns(c.IgnoreCalls)
	return err
}

// LoadConfig reads a YAML config file. Unset keys keep their defaults;
// unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "cannot read "+path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config data over DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "malformed config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ignoreSet is a compiled list of ignore patterns.
type ignoreSet []*regexp2.Regexp

func compilePatterns(patterns []string) (ignoreSet, error) {
	set := make(ignoreSet, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.None)
		if err != nil {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Value(p).
				Cause(err).
				Detail("bad ignore pattern %q", p).
				Build()
		}
		re.MatchTimeout = patternTimeout
		set = append(set, re)
	}
	return set, nil
}

// Match reports whether name matches any pattern. A pattern that times
// out counts as no match.
func (s ignoreSet) Match(name string) bool {
	for _, re := range s {
		if ok, err := re.MatchString(name); err == nil && ok {
			return true
		}
	}
	return false
}
