package diag

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger exposes Start/Finish/Error call-site ergonomics backed by zap,
// with rotation delegated to lumberjack.
type Logger struct {
	corrID string
	z      *zap.Logger
}

// NewLogger builds a Logger writing JSON lines to logs/deckxlate-current.log,
// rotated by lumberjack at 10MiB with 5 backups kept.
func NewLogger(corrID, level string) *Logger {
	lj := &lumberjack.Logger{
		Filename:   "logs/deckxlate-current.log",
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:    "ts",
		LevelKey:   "level",
		MessageKey: "msg",
		NameKey:    "logger",
		EncodeTime: zapcore.RFC3339TimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(lj), parseLevel(level))
	return &Logger{corrID: corrID, z: zap.New(core)}
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) base(comp, stage, elementID, jobID string) []zap.Field {
	f := []zap.Field{
		zap.String("corr_id", l.corrID),
		zap.String("comp", comp),
		zap.String("stage", stage),
	}
	if elementID != "" {
		f = append(f, zap.String("element_id", elementID))
	}
	if jobID != "" {
		f = append(f, zap.String("job_id", jobID))
	}
	return f
}

// Start logs a start event and returns a Timer for the matching Finish.
func (l *Logger) Start(comp, msg string) *Timer {
	l.z.Info(msg, l.base(comp, "start", "", "")...)
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith logs a start event carrying an element/job identity pair.
func (l *Logger) StartWith(comp, msg, elementID, jobID string) *Timer {
	l.z.Info(msg, l.base(comp, "start", elementID, jobID)...)
	return &Timer{l: l, comp: comp, elementID: elementID, jobID: jobID, t0: time.Now()}
}

// StartWithKV additionally attaches free-form key/value fields.
func (l *Logger) StartWithKV(comp, msg, elementID, jobID string, kv map[string]string) *Timer {
	fields := l.base(comp, "start", elementID, jobID)
	for k, v := range kv {
		fields = append(fields, zap.String(k, v))
	}
	l.z.Info(msg, fields...)
	return &Timer{l: l, comp: comp, elementID: elementID, jobID: jobID, t0: time.Now()}
}

// DebugStart logs a debug-level start event; a no-op unless the logger
// level is debug.
func (l *Logger) DebugStart(comp, msg, elementID, jobID string, kv map[string]string) {
	fields := l.base(comp, "start", elementID, jobID)
	for k, v := range kv {
		fields = append(fields, zap.String(k, v))
	}
	l.z.Debug(msg, fields...)
}

// Error logs an error event, optionally with an elapsed-since duration.
func (l *Logger) Error(comp string, code Code, msg string, since *time.Time) {
	l.ErrorWith(comp, code, msg, since, "", "")
}

// ErrorWith additionally attaches an element/job identity pair.
func (l *Logger) ErrorWith(comp string, code Code, msg string, since *time.Time, elementID, jobID string) {
	fields := l.base(comp, "error", elementID, jobID)
	fields = append(fields, zap.String("code", string(code)))
	if since != nil {
		fields = append(fields, zap.Int64("dur_ms", time.Since(*since).Milliseconds()))
	}
	l.z.Error(msg, fields...)
}

// ErrorWithKV additionally attaches free-form key/value fields (e.g. an
// upstream HTTP status or a truncated upstream error body).
func (l *Logger) ErrorWithKV(comp string, code Code, msg string, since *time.Time, elementID, jobID string, kv map[string]string) {
	fields := l.base(comp, "error", elementID, jobID)
	fields = append(fields, zap.String("code", string(code)))
	if since != nil {
		fields = append(fields, zap.Int64("dur_ms", time.Since(*since).Milliseconds()))
	}
	for k, v := range kv {
		fields = append(fields, zap.String(k, v))
	}
	l.z.Error(msg, fields...)
}

// InfoFinish logs a finish event given an external start time.
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	fields := l.base(comp, "finish", "", "")
	fields = append(fields, zap.Int64("dur_ms", time.Since(start).Milliseconds()), zap.Int64("count", count))
	l.z.Info(msg, fields...)
}

// Sync flushes the underlying zap core; callers should defer it once per
// process (or per job run, in tests).
func (l *Logger) Sync() error { return l.z.Sync() }

// Timer tracks a start→finish span for one component invocation.
type Timer struct {
	l         *Logger
	comp      string
	elementID string
	jobID     string
	t0        time.Time
}

// Finish logs the matching finish event.
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	fields := t.l.base(t.comp, "finish", t.elementID, t.jobID)
	fields = append(fields, zap.Int64("dur_ms", time.Since(t.t0).Milliseconds()), zap.Int64("count", count))
	t.l.z.Info(msg, fields...)
}
