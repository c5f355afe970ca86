// Package decorators holds ready-made decorators for hook pipelines.
package decorators

import (
	"github.com/a-peyrard/blackmagic/hook"
	"github.com/a-peyrard/blackmagic/option"
	"github.com/rs/zerolog"
)

type (
	// Logging logs every call entering and leaving the pipeline.
	Logging struct {
		logger *zerolog.Logger
		level  zerolog.Level
		args   bool
	}

	LoggingOptions struct {
		level zerolog.Level
		args  bool
	}
)

var _ hook.Decorator = (*Logging)(nil)

func AtLevel(level zerolog.Level) option.Option[LoggingOptions] {
	return func(opts *LoggingOptions) {
		opts.level = level
	}
}

// WithArgs adds the argument values to the "call started" line.
func WithArgs() option.Option[LoggingOptions] {
	return func(opts *LoggingOptions) {
		opts.args = true
	}
}

func NewLogging(logger *zerolog.Logger, opts ...option.Option[LoggingOptions]) *Logging {
	options := option.Build(&LoggingOptions{level: zerolog.DebugLevel}, opts...)
	return &Logging{logger: logger, level: options.level, args: options.args}
}

func (l *Logging) ContextSize() int {
	return 0
}

func (l *Logging) Before(_ hook.CallContext, call *hook.Invocation) bool {
	event := l.logger.WithLevel(l.level).Str("target", call.Target().Name())
	if l.args {
		values := make([]any, call.NumArgs())
		for i := range values {
			values[i] = call.Arg(i).Interface()
		}
		event = event.Interface("args", values)
	}
	event.Msg("call started")
	return true
}

func (l *Logging) After(_ hook.CallContext, call *hook.Invocation) {
	event := l.logger.WithLevel(l.level).Str("target", call.Target().Name())
	if call.Vetoed() {
		event.Msg("call refused")
		return
	}
	if v, ok := call.Panic(); ok {
		event.Interface("panic", v).Msg("call panicked")
		return
	}
	if err := call.Err(); err != nil {
		event.Err(err).Msg("call failed")
		return
	}
	event.Msg("call finished")
}
