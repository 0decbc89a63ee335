package valueobject

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCorrelationKey(t *testing.T) {
	t.Run("should encode all four components with version prefix", func(t *testing.T) {
		key, err := NewCorrelationKey("acme", "orders", "order-42", "embed-v1")
		require.NoError(t, err)
		assert.Equal(t, "bf1:acme/orders/order-42/embed-v1", key.String())
	})

	t.Run("should escape separator characters inside components", func(t *testing.T) {
		key, err := NewCorrelationKey("acme/eu", "orders", "42", "embed")
		require.NoError(t, err)
		assert.Equal(t, "bf1:acme%2Feu/orders/42/embed", key.String())
	})

	t.Run("should reject empty components", func(t *testing.T) {
		testCases := []struct {
			name                                    string
			namespace, collection, itemID, processor string
		}{
			{"empty namespace", "", "c", "i", "p"},
			{"empty collection", "n", "", "i", "p"},
			{"empty item ID", "n", "c", "", "p"},
			{"empty processor", "n", "c", "i", ""},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := NewCorrelationKey(tc.namespace, tc.collection, tc.itemID, tc.processor)
				require.Error(t, err)
			})
		}
	})

	t.Run("should be deterministic for the same identity", func(t *testing.T) {
		a, err := NewCorrelationKey("n", "c", "i", "p")
		require.NoError(t, err)
		b, err := NewCorrelationKey("n", "c", "i", "p")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestCorrelationKeyDecode(t *testing.T) {
	t.Run("should round-trip plain components", func(t *testing.T) {
		key, err := NewCorrelationKey("acme", "orders", "order-42", "embed-v1")
		require.NoError(t, err)

		ns, coll, itemID, proc, err := key.Decode()
		require.NoError(t, err)
		assert.Equal(t, "acme", ns)
		assert.Equal(t, "orders", coll)
		assert.Equal(t, "order-42", itemID)
		assert.Equal(t, "embed-v1", proc)
	})

	t.Run("should round-trip components containing separators and spaces", func(t *testing.T) {
		key, err := NewCorrelationKey("acme/eu", "open orders", "42%7", "embed v1/beta")
		require.NoError(t, err)

		ns, coll, itemID, proc, err := key.Decode()
		require.NoError(t, err)
		assert.Equal(t, "acme/eu", ns)
		assert.Equal(t, "open orders", coll)
		assert.Equal(t, "42%7", itemID)
		assert.Equal(t, "embed v1/beta", proc)
	})

	t.Run("should fail with MalformedKeyError on bad input", func(t *testing.T) {
		testCases := []struct {
			name string
			key  string
		}{
			{"missing prefix", "acme/orders/42/embed"},
			{"wrong prefix", "bf2:acme/orders/42/embed"},
			{"too few segments", "bf1:acme/orders/42"},
			{"too many segments", "bf1:a/b/c/d/e"},
			{"empty segment", "bf1:acme//42/embed"},
			{"invalid escape", "bf1:acme/orders/4%zz/embed"},
			{"empty string", ""},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, _, _, _, err := CorrelationKey(tc.key).Decode()
				require.Error(t, err)

				var malformed *MalformedKeyError
				require.True(t, errors.As(err, &malformed))
				assert.Equal(t, tc.key, malformed.Key)
				assert.NotEmpty(t, malformed.Reason)
			})
		}
	})
}
