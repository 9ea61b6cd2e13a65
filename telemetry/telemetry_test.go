package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestNoCollectorIsNoOp(t *testing.T) {
	timer := StartTimer(context.Background(), "anything")
	timer.End() // must not panic
}

func TestTimingCollectorNesting(t *testing.T) {
	collector := NewTimingCollector()
	ctx := WithCollector(context.Background(), collector)

	outer := StartTimer(ctx, "open db")
	inner := StartTimer(ctx, "parse")
	inner.End()
	sibling := StartTimer(ctx, "materialize")
	sibling.End()
	outer.End()

	var buf strings.Builder
	collector.Report(&buf)
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, 3, len(lines))
	assert.True(t, strings.HasPrefix(lines[0], "open db: "))
	assert.True(t, strings.Contains(lines[1], "├─ parse"))
	assert.True(t, strings.Contains(lines[2], "└─ materialize"))
}

func TestEmptyReport(t *testing.T) {
	var buf strings.Builder
	NewTimingCollector().Report(&buf)
	assert.Equal(t, "", buf.String())
}
