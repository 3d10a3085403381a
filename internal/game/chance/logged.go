package chance

import "go.uber.org/zap"

// LoggedSource wraps a Source and logs every draw at debug level, giving
// an audit trail for dispute-prone outcomes (damage, block, gacha picks).
type LoggedSource struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedSource creates a LoggedSource that draws from src and logs
// each draw to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedSource(src Source, logger *zap.Logger) *LoggedSource {
	return &LoggedSource{src: src, logger: logger}
}

// Intn draws from the wrapped source and logs the bound and value.
func (l *LoggedSource) Intn(n int) int {
	v := l.src.Intn(n)
	l.logger.Debug("integer draw", zap.Int("bound", n), zap.Int("value", v))
	return v
}

// Float64 draws from the wrapped source and logs the value.
func (l *LoggedSource) Float64() float64 {
	v := l.src.Float64()
	l.logger.Debug("float draw", zap.Float64("value", v))
	return v
}
