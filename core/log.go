package core

import "github.com/rs/zerolog"

type Log interface {
	Info() *zerolog.Event
	Debug() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
}

var nopLogger = zerolog.Nop()

// NopLog discards everything; used on read-only valuation paths.
type NopLog struct{}

func (NopLog) Info() *zerolog.Event  { return nopLogger.Info() }
func (NopLog) Debug() *zerolog.Event { return nopLogger.Debug() }
func (NopLog) Warn() *zerolog.Event  { return nopLogger.Warn() }
func (NopLog) Error() *zerolog.Event { return nopLogger.Error() }
