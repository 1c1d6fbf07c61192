package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestNewContext(t *testing.T) {
	tc := New()
	if len(tc.TraceID) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(tc.TraceID))
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(tc.SpanID))
	}
	if tc.ParentSpanID != "" {
		t.Error("new context should not have parent span ID")
	}
}

func TestIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New().TraceID
		if seen[id] {
			t.Fatal("generated duplicate trace ID")
		}
		seen[id] = true
	}
}

func TestChild(t *testing.T) {
	parent := New()
	child := parent.Child()

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have new span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}

	orphan := Context{}.Child()
	if orphan.TraceID == "" || orphan.ParentSpanID != "" {
		t.Errorf("child of zero context should be a root, got %+v", orphan)
	}
}

func TestContinue(t *testing.T) {
	tc := Continue("abc123", "span9")
	if tc.TraceID != "abc123" || tc.ParentSpanID != "span9" {
		t.Errorf("Continue = %+v", tc)
	}
	if len(tc.SpanID) != 16 {
		t.Error("Continue should generate a span ID")
	}

	if fresh := Continue("", "ignored"); len(fresh.TraceID) != 32 || fresh.ParentSpanID != "" {
		t.Errorf("Continue without trace id = %+v, want new root", fresh)
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	if len(tc.TraceID) != 32 {
		t.Error("should create trace ID")
	}

	_, again := EnsureContext(ctx)
	if again.TraceID != tc.TraceID {
		t.Error("should return existing trace")
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("should not find trace context in empty context")
	}
}

func TestSpanNested(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "capture_cycle")
	_, child := StartSpan(ctx, "ocr_extract")

	if child.Ctx.TraceID != parent.Ctx.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Error("child's parent should be parent's span")
	}

	child.SetAttr("bytes", 1024)
	child.End()
	if child.EndTime.IsZero() || child.Duration() < 0 {
		t.Error("ended span should have an end time")
	}
	if child.Attrs["bytes"] != 1024 {
		t.Error("span attribute mismatch")
	}
}

func TestMiddleware(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", http.NoBody)
	req.Header.Set(TraceIDKey, "feedface")
	req.Header.Set(SpanIDKey, "caller")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen.TraceID != "feedface" || seen.ParentSpanID != "caller" {
		t.Errorf("trace context = %+v", seen)
	}
	if rec.Header().Get(TraceIDKey) != "feedface" {
		t.Error("trace id should be echoed in the response")
	}
}

func TestOutgoingMetadata(t *testing.T) {
	tc := New()
	ctx := outgoing(WithContext(context.Background(), tc))

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	if first(md.Get(TraceIDKey)) != tc.TraceID {
		t.Error("trace id not propagated")
	}
	if first(md.Get(SpanIDKey)) != tc.SpanID {
		t.Error("span id not propagated")
	}
}

func TestLogger(t *testing.T) {
	ctx := WithContext(context.Background(), New())
	Logger(ctx).Info("test message")
	Logger(context.Background()).Info("no trace")
}
