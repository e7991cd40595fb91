package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "raw/2025/10/abc.md", "text/markdown", bytes.NewBufferString("# log"))
	require.NoError(t, err)
	assert.Equal(t, "memory://raw/2025/10/abc.md", uri)

	got, ok := store.Object("raw/2025/10/abc.md")
	require.True(t, ok)
	assert.Equal(t, "# log", string(got))
	assert.Equal(t, []string{"raw/2025/10/abc.md"}, store.Paths())
}
