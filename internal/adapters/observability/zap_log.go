package observability

import (
	"go.uber.org/zap"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/ports"
)

// ZapLogSink routes operator-facing status lines through a zap logger.
type ZapLogSink struct {
	logger *zap.Logger
}

func NewZapLogSink(logger *zap.Logger) *ZapLogSink {
	return &ZapLogSink{logger: logger}
}

func (z *ZapLogSink) Log(message, level string) {
	switch level {
	case ports.LevelError:
		z.logger.Error(message)
	case ports.LevelWarning:
		z.logger.Warn(message)
	default:
		z.logger.Info(message)
	}
}

var _ ports.LogSink = (*ZapLogSink)(nil)
