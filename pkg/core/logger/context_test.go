package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGet_FallsBackToDefault(t *testing.T) {
	// Given: a default logger
	def := zap.NewExample()
	SetDefault(def)
	t.Cleanup(func() { SetDefault(zap.NewNop()) })

	// When/Then: contexts without a logger return the default
	//nolint:staticcheck // nil context is part of the contract
	assert.Same(t, def, Get(nil))
	assert.Same(t, def, Get(context.Background()))
	assert.Same(t, def, Get(context.WithValue(context.Background(), loggerCtxKey, "not a logger")))
}

func TestGet_ReturnsContextLogger(t *testing.T) {
	// Given
	l := zap.NewNop().With(zap.String("component", "test"))

	// When
	ctx := With(context.Background(), l)

	// Then
	assert.Same(t, l, Get(ctx))
}

func TestWith_ReplacesExistingLogger(t *testing.T) {
	// Given
	first := zap.NewNop()
	second := zap.NewExample()
	ctx := With(context.Background(), first)

	// When
	ctx = With(ctx, second)

	// Then
	assert.Same(t, second, Get(ctx))
}

func TestWith_NilContext(t *testing.T) {
	l := zap.NewNop()
	//nolint:staticcheck // nil context is part of the contract
	ctx := With(nil, l)
	assert.NotNil(t, ctx)
	assert.Same(t, l, Get(ctx))
}

func TestSetDefault_IgnoresNil(t *testing.T) {
	before := Get(context.Background())
	SetDefault(nil)
	assert.Same(t, before, Get(context.Background()))
}

func TestGet_ConcurrentAccess(t *testing.T) {
	ctx := With(context.Background(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, Get(ctx))
		}()
	}
	wg.Wait()
}
