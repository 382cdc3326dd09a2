package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffWithJitter(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, max)
	}
	d := backoffWithJitter(min, max, 1)
	assert.GreaterOrEqual(t, d, min/2)
	assert.LessOrEqual(t, d, min)
}

func TestHookChainOrderAndPanic(t *testing.T) {
	var order []string
	mk := func(name string) ConsumerHook {
		return hookFuncs{
			before: func(ctx context.Context, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before:"+name)
				return ctx, km, append(data, name...), nil
			},
			after: func() { order = append(order, "after:"+name) },
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))

	ctx, km, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(">"))
	require.NoError(t, err)
	assert.Equal(t, ">ab", string(data))
	chain.AfterHandle(ctx, "t", km, data, nil)
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, order)

	panicky := hookFuncs{before: func(context.Context, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
		panic("boom")
	}}
	_, _, _, err = NewHookChain(panicky).BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "ERR_PANIC", he.Code)
}

func TestTracingAndSizeHooks(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: TraceIDHeader, Value: []byte("abc")}}}
	ctx, _, _, err := TracingHook{}.BeforeHandle(context.Background(), "t", km, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceIDFrom(ctx))

	_, _, _, err = MaxSizeHook{Limit: 3}.BeforeHandle(context.Background(), "t", km, []byte("1234"))
	assert.Error(t, err)
	_, _, _, err = MaxSizeHook{Limit: 3}.BeforeHandle(context.Background(), "t", km, []byte("123"))
	assert.NoError(t, err)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(b))

	b, err = encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))
}

type hookFuncs struct {
	before func(context.Context, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error)
	after  func()
}

func (h hookFuncs) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	if h.before == nil {
		return ctx, km, data, nil
	}
	return h.before(ctx, km, data)
}

func (h hookFuncs) AfterHandle(context.Context, string, kafka.Message, []byte, error) {
	if h.after != nil {
		h.after()
	}
}

func (h hookFuncs) OnError(context.Context, string, kafka.Message, []byte, error) {}
