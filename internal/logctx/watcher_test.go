package logctx

import (
	"bytes"
	"context"
	"dcsingest/internal/global"
	"strings"
	"testing"
)

func TestWatcher_DrainAndDedup(t *testing.T) {
	done := make(chan struct{})
	ctx := New(context.Background(), global.NSTest, global.VerbosityDebug, done)
	logger := GetLogger(ctx)

	var output bytes.Buffer
	StartWatcher(logger, &output)

	// Wake with nothing queued is harmless
	logger.Wake()

	LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "first line\n")
	for i := 0; i < 11; i++ {
		LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "framing error\n")
	}

	close(done)
	logger.Wake()
	logger.Wait()

	out := output.String()
	if !strings.Contains(out, "first line") {
		t.Errorf("expected first line in output but got:\n%s", out)
	}
	if strings.Count(out, "[Warn] framing error") != 1 {
		t.Errorf("expected repeated message printed once but got:\n%s", out)
	}
	if !strings.Contains(out, "Suppressed 10 repeated messages: framing error") {
		t.Errorf("expected suppression summary but got:\n%s", out)
	}
	if logger.Pending() != 0 {
		t.Errorf("expected drained buffer but got %d pending", logger.Pending())
	}
}
