package logging

import "go.uber.org/zap"

// Leveled adapts zap to the key/value LeveledLogger interface used by
// go-retryablehttp.
type Leveled struct {
	sugar *zap.SugaredLogger
}

// NewLeveled creates a leveled adapter. A nil logger discards output.
func NewLeveled(l *zap.Logger) *Leveled {
	return &Leveled{sugar: OrNop(l).WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *Leveled) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Leveled) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Leveled) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Leveled) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}
