package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "batch", "run-1")
	_, extract := StartChildSpan(ctx, "extract")
	extract.SetAttr("documents", 4)
	extract.End()
	first := extract.Duration()
	time.Sleep(time.Millisecond)
	extract.End()
	if extract.Duration() != first {
		t.Error("second End changed the duration")
	}
	if extract.TraceID != "run-1" {
		t.Errorf("child trace id = %q", extract.TraceID)
	}
	root.End()

	if kids := root.Children(); len(kids) != 1 || kids[0] != extract {
		t.Fatalf("children = %v", kids)
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, nil)))
	out := buf.String()
	for _, want := range []string{"span=batch", "span=extract", "documents=4", "depth=1", "trace_id=run-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestDetachedChild(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	if FromContext(ctx) != span || span.TraceID != "" {
		t.Errorf("detached span = %+v", span)
	}
}
