// Package logging builds zerolog loggers and holds the logger used by library code.
//
// Library packages never print on their own: they log through Get(), which is
// disabled until an application calls Set (directly or through blackmagic.Configure).
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/a-peyrard/blackmagic/option"
	"github.com/rs/zerolog"
)

type Options struct {
	out     io.Writer
	console bool
	caller  bool
}

var current atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	current.Store(&nop)
}

// WithWriter sets the destination, stderr by default.
func WithWriter(w io.Writer) option.Option[Options] {
	return func(opts *Options) {
		opts.out = w
	}
}

// WithJSON disables the console writer and emits raw JSON lines.
func WithJSON() option.Option[Options] {
	return func(opts *Options) {
		opts.console = false
	}
}

// WithoutCaller removes the caller field.
func WithoutCaller() option.Option[Options] {
	return func(opts *Options) {
		opts.caller = false
	}
}

// LevelFromEnv parses the level held by the given env var, info when unset.
func LevelFromEnv(key string) (zerolog.Level, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return zerolog.InfoLevel, nil
	}
	return ParseLevel(raw)
}

// ParseLevel is zerolog.ParseLevel, case insensitive.
func ParseLevel(raw string) (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %s: %w", raw, err)
	}
	return level, nil
}

// New creates a logger writing to stderr through a console writer.
func New(level zerolog.Level, opts ...option.Option[Options]) *zerolog.Logger {
	options := option.Build(&Options{out: os.Stderr, console: true, caller: true}, opts...)

	writer := options.out
	if options.console {
		writer = zerolog.ConsoleWriter{Out: options.out, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(writer).
		Level(level).
		With().
		Timestamp()
	if options.caller {
		ctx = ctx.Caller()
	}
	logger := ctx.Logger()

	return &logger
}

// Get returns the library logger.
func Get() *zerolog.Logger {
	return current.Load()
}

// Set replaces the library logger and returns a function putting the previous one back.
func Set(logger *zerolog.Logger) (restore func()) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	prev := current.Swap(logger)
	return func() {
		current.Store(prev)
	}
}
