package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnImageStart(ctx, "us")
	p.OnImageComplete(ctx, "us", 6, time.Second, nil)
	p.OnImageComplete(ctx, "us", 0, time.Second, errors.New("boom"))
	p.OnImageSkipped(ctx, "blank", "no opaque pixels")
	p.OnRenderComplete(ctx, "us", 1280, 674, time.Millisecond)
	p.OnPaletteComplete(ctx, "us", 3, time.Millisecond)
	p.OnSegmentComplete(ctx, "us", 14, time.Millisecond)
	p.OnPackComplete(ctx, "us", 6, time.Millisecond)
	p.OnEncodeComplete(ctx, "us", 7, time.Millisecond)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "raster")
	c.OnCacheMiss(ctx, "artifact")
	c.OnCacheSet(ctx, "artifact", 2048)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "localhost:8080", "/layers/us/00.png")
	h.OnResponse(ctx, "GET", "localhost:8080", "/layers/us/00.png", 200, time.Millisecond)
	h.OnError(ctx, "GET", "localhost:8080", "/layers/nope/00.png", errors.New("not found"))
}

type testPipelineHooks struct {
	NoopPipelineHooks
	started   []string
	completed []string
}

func (h *testPipelineHooks) OnImageStart(_ context.Context, key string) {
	h.started = append(h.started, key)
}

func (h *testPipelineHooks) OnImageComplete(_ context.Context, key string, _ int, _ time.Duration, _ error) {
	h.completed = append(h.completed, key)
}

type testCacheHooks struct {
	NoopCacheHooks
	hits int
}

func (h *testCacheHooks) OnCacheHit(_ context.Context, _ string) {
	h.hits++
}

func TestGlobalHooksRegistry(t *testing.T) {
	defer Reset()

	ctx := context.Background()

	ph := &testPipelineHooks{}
	SetPipelineHooks(ph)
	Pipeline().OnImageStart(ctx, "fr")
	Pipeline().OnImageComplete(ctx, "fr", 3, time.Second, nil)

	if len(ph.started) != 1 || ph.started[0] != "fr" {
		t.Errorf("expected start event for fr, got %v", ph.started)
	}
	if len(ph.completed) != 1 || ph.completed[0] != "fr" {
		t.Errorf("expected complete event for fr, got %v", ph.completed)
	}

	ch := &testCacheHooks{}
	SetCacheHooks(ch)
	Cache().OnCacheHit(ctx, "raster")
	Cache().OnCacheHit(ctx, "artifact")

	if ch.hits != 2 {
		t.Errorf("expected 2 cache hits, got %d", ch.hits)
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("expected Reset to restore noop pipeline hooks")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("expected Reset to restore noop cache hooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	defer Reset()

	ph := &testPipelineHooks{}
	SetPipelineHooks(ph)
	SetPipelineHooks(nil)

	Pipeline().OnImageStart(context.Background(), "jp")
	if len(ph.started) != 1 {
		t.Error("expected registered hooks to survive a nil Set")
	}
}
