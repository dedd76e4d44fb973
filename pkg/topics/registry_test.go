package topics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	r := Defaults()
	for _, name := range []string{DataRequest, CustomersRedact, ShopRedact, AppUninstalled, ProductsCreate, OrdersUpdated, InventoryUpdate} {
		assert.True(t, r.Contains(name), name)
	}
	assert.False(t, r.Contains("carts/create"))

	all := r.All()
	require.NotEmpty(t, all)
	// Mandatory compliance topics sort first.
	assert.True(t, all[0].Mandatory)
	assert.True(t, all[1].Mandatory)
	assert.True(t, all[2].Mandatory)
	assert.False(t, all[3].Mandatory)

	topic, ok := r.Get(ProductsCreate)
	require.True(t, ok)
	assert.Equal(t, "/webhooks/products/create", topic.Path)
}

func TestLoad(t *testing.T) {
	t.Run("empty path means defaults", func(t *testing.T) {
		r, err := Load("")
		require.NoError(t, err)
		assert.True(t, r.Contains(ProductsCreate))
	})

	t.Run("file replaces the catalog but keeps mandatory topics", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "topics.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
topics:
  - name: orders/create
  - name: carts/update
    path: /webhooks/carts/update
`), 0o600))
		r, err := Load(path)
		require.NoError(t, err)
		assert.True(t, r.Contains("orders/create"))
		assert.True(t, r.Contains("carts/update"))
		assert.False(t, r.Contains(ProductsCreate))
		for _, name := range []string{DataRequest, CustomersRedact, ShopRedact} {
			assert.True(t, r.Contains(name), name)
		}
	})

	t.Run("bad topic name rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "topics.yaml")
		require.NoError(t, os.WriteFile(path, []byte("topics:\n  - name: notatopic\n"), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file surfaces", func(t *testing.T) {
		_, err := Load("/does/not/exist.yaml")
		assert.Error(t, err)
	})
}
