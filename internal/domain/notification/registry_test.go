package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuildIntent(t *testing.T) {
	r := DefaultRegistry()

	intent, err := r.BuildIntent("order_shipped", map[string]any{"orderId": "ord-42"})
	require.NoError(t, err)

	assert.Equal(t, "order_shipped", intent.Type)
	assert.Equal(t, "messages.orders.shipped.title", intent.Title)
	assert.Equal(t, "messages.orders.shipped.body", intent.Message)
	require.NotNil(t, intent.Email)
	assert.Equal(t, "order_shipped", intent.Email.Template)
	assert.Equal(t, "ord-42", intent.Metadata["order_id"])
	assert.Equal(t, "orders", intent.Metadata["category"])
}

func TestRegistry_UnregisteredType(t *testing.T) {
	r := NewRegistry()

	_, err := r.BuildIntent("nonexistent", nil)
	require.Error(t, err)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register("ping", Descriptor{TitleKey: "a"})
	r.Register("ping", Descriptor{TitleKey: "b"})

	desc, ok := r.Lookup("ping")
	require.True(t, ok)
	assert.Equal(t, "b", desc.TitleKey)
}
