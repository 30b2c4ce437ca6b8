package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWithContext(t *testing.T) {
	logger := zap.NewNop()
	ctx := WithContext(context.Background(), logger)

	retrieved := FromContext(ctx)
	assert.Equal(t, logger, retrieved)
}

func TestFromContext_NoLogger(t *testing.T) {
	retrieved := FromContext(context.Background())

	// Falls back to a no-op logger rather than nil
	assert.NotNil(t, retrieved)
}

func TestWithRequestID(t *testing.T) {
	logger := zap.NewNop()

	ctx, enriched := WithRequestID(context.Background(), logger, "req-123")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	assert.NotNil(t, enriched)
	assert.Equal(t, enriched, FromContext(ctx))
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestGetTraceID_NoSpan(t *testing.T) {
	// Without an active span there is no valid trace ID
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestWithTraceContext_NoSpan(t *testing.T) {
	logger := zap.NewNop()

	enriched := WithTraceContext(context.Background(), logger)

	assert.Equal(t, logger, enriched)
}

func TestContextLogger(t *testing.T) {
	logger := zap.NewNop()
	ctx := WithContext(context.Background(), logger)

	cl := L(ctx)
	assert.NotNil(t, cl)

	// Logging must not panic even without trace or request context
	cl.Debug("debug")
	cl.Info("info")
	cl.Warn("warn")
	cl.Error("error")

	child := cl.With(zap.String("sku_id", "SKU-1"))
	assert.NotNil(t, child)
	assert.NotNil(t, child.Zap())
}

func TestWithLogger(t *testing.T) {
	logger := zap.NewNop()

	cl := WithLogger(context.Background(), logger)

	assert.NotNil(t, cl)
	cl.Info("message")
}
