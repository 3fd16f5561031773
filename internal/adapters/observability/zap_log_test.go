package observability

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/ports"
)

func TestZapLogSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewZapLogSink(zap.New(core))

	sink.Log("starting", ports.LevelInfo)
	sink.Log("slow socket", ports.LevelWarning)
	sink.Log("lost device", ports.LevelError)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("entry count = %d, want 3", len(entries))
	}
	wantLevels := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Fatalf("entry %d level = %v, want %v", i, e.Level, wantLevels[i])
		}
	}
	if entries[2].Message != "lost device" {
		t.Fatalf("message = %q", entries[2].Message)
	}
}
