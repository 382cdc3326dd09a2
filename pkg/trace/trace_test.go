package trace

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpanDisabled(t *testing.T) {
	require.NoError(t, Init(Config{Enabled: false}))
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	_, ok := TraceID(ctx)
	assert.False(t, ok)
	assert.False(t, Enabled())
}

func TestStartSpanExports(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Config{Enabled: true, ServiceName: "test", Writer: &buf}))
	assert.True(t, Enabled())

	ctx, span := StartSpan(context.Background(), "feed.parse")
	id, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Len(t, id, 32)
	Fail(span, errors.New("boom"))
	span.End()

	require.NoError(t, Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "feed.parse")
	assert.False(t, Enabled())
}
