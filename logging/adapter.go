// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"github.com/sam-fredrickson/keyrecon"
)

type zerologAdapter struct {
	log zerolog.Logger
}

// Zerolog adapts a zerolog logger to [keyrecon.Logger].
func Zerolog(l zerolog.Logger) keyrecon.Logger {
	return zerologAdapter{log: l}
}

func (a zerologAdapter) Info(msg string, fields ...keyrecon.Field) {
	emit(a.log.Info(), msg, fields)
}

func (a zerologAdapter) Warn(msg string, fields ...keyrecon.Field) {
	emit(a.log.Warn(), msg, fields)
}

func (a zerologAdapter) Error(msg string, fields ...keyrecon.Field) {
	emit(a.log.Error(), msg, fields)
}

func emit(e *zerolog.Event, msg string, fields []keyrecon.Field) {
	// nil when the level is disabled
	if e == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			e = e.Str(f.Key, v)
		case error:
			e = e.AnErr(f.Key, v)
		default:
			e = e.Interface(f.Key, v)
		}
	}
	e.Msg(msg)
}

type zapAdapter struct {
	log *zap.Logger
}

// Zap adapts a zap logger to [keyrecon.Logger]. A nil logger discards.
func Zap(l *zap.Logger) keyrecon.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return zapAdapter{log: l}
}

func (a zapAdapter) Info(msg string, fields ...keyrecon.Field) {
	a.log.Info(msg, zapFields(fields)...)
}

func (a zapAdapter) Warn(msg string, fields ...keyrecon.Field) {
	a.log.Warn(msg, zapFields(fields)...)
}

func (a zapAdapter) Error(msg string, fields ...keyrecon.Field) {
	a.log.Error(msg, zapFields(fields)...)
}

func zapFields(fields []keyrecon.Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}
