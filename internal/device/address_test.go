package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medtime-companion/internal/store"
)

func TestAddressPersistence(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	const factory = "http://192.168.4.1"

	assert.Equal(t, factory, LoadAddress(ctx, kv, factory))

	link := New(factory, testOptions())
	require.NoError(t, SaveAddress(ctx, kv, link, "192.168.0.42"))
	assert.Equal(t, "http://192.168.0.42", link.BaseAddress())
	assert.Equal(t, "http://192.168.0.42", LoadAddress(ctx, kv, factory))

	require.NoError(t, ResetAddress(ctx, kv, link, factory))
	assert.Equal(t, factory, link.BaseAddress())
	assert.Equal(t, factory, LoadAddress(ctx, kv, factory))
}
