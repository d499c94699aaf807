package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// syslogWriter is the subset of *syslog.Writer the core writes through.
type syslogWriter interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
	Crit(m string) error
}

// syslogCore encodes entries and sends each at the syslog priority
// matching its zap level.
type syslogCore struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	w   syslogWriter
}

func newSyslogCore(w syslogWriter, enc zapcore.Encoder, level zapcore.LevelEnabler) zapcore.Core {
	return &syslogCore{LevelEnabler: level, enc: enc, w: w}
}

func (c *syslogCore) With(fields []zapcore.Field) zapcore.Core {
	enc := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &syslogCore{LevelEnabler: c.LevelEnabler, enc: enc, w: c.w}
}

func (c *syslogCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *syslogCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := strings.TrimSuffix(buf.String(), "\n")
	buf.Free()

	switch {
	case ent.Level <= zapcore.DebugLevel:
		return c.w.Debug(msg)
	case ent.Level == zapcore.InfoLevel:
		return c.w.Info(msg)
	case ent.Level == zapcore.WarnLevel:
		return c.w.Warning(msg)
	case ent.Level == zapcore.ErrorLevel:
		return c.w.Err(msg)
	default:
		return c.w.Crit(msg)
	}
}

func (c *syslogCore) Sync() error {
	return nil
}
