package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CheckAll(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register(NewCheckFunc("store", func(ctx context.Context) error { return nil }))
	r.Register(NewCheckFunc("catalog", func(ctx context.Context) error { return nil }))

	assert.Equal(t, []string{"catalog", "store"}, r.List())

	results, ok := r.CheckAll(context.Background())
	assert.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, "catalog", results[0].Name)
	assert.True(t, results[1].Healthy)
}

func TestRegistry_FailingChecker(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register(NewCheckFunc("store", func(ctx context.Context) error { return errors.New("dial tcp: refused") }))
	r.Register(NewCheckFunc("catalog", func(ctx context.Context) error { return nil }))

	results, ok := r.CheckAll(context.Background())
	assert.False(t, ok)
	require.Len(t, results, 2)
	assert.True(t, results[0].Healthy)
	assert.False(t, results[1].Healthy)
	assert.Equal(t, "dial tcp: refused", results[1].Error)

	r.Unregister("store")
	_, ok = r.CheckAll(context.Background())
	assert.True(t, ok)
}

func TestRegistry_Timeout(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register(NewCheckFunc("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	results, ok := r.CheckAll(context.Background())
	assert.False(t, ok)
	assert.Contains(t, results[0].Error, "deadline exceeded")
}

func TestRegistry_Empty(t *testing.T) {
	results, ok := NewRegistry(0).CheckAll(context.Background())
	assert.True(t, ok)
	assert.Empty(t, results)
}

func TestRegistry_ChecksRunConcurrently(t *testing.T) {
	r := NewRegistry(time.Second)
	started := make(chan struct{}, 3)
	release := make(chan struct{})

	for _, name := range []string{"a", "b", "c"} {
		r.Register(NewCheckFunc(name, func(ctx context.Context) error {
			started <- struct{}{}
			select {
			case <-release:
				return errors.New("down")
			case <-ctx.Done():
				return ctx.Err()
			}
		}))
	}

	go func() {
		for i := 0; i < 3; i++ {
			<-started
		}
		close(release)
	}()

	results, ok := r.CheckAll(context.Background())
	assert.False(t, ok)
	require.Len(t, results, 3)
	for _, res := range results {
		// every failing checker still reports its own error
		assert.Equal(t, "down", res.Error, res.Name)
	}
}
