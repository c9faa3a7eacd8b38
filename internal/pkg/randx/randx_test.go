package randx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionIDShapeAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{})

	for range 200 {
		id := ConnectionID()
		require.True(t, IsValidConnectionID(id), id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate connection id %s", id)
		seen[id] = struct{}{}
	}
}

func TestIsValidConnectionID(t *testing.T) {
	assert.False(t, IsValidConnectionID("abc"))
	assert.False(t, IsValidConnectionID("conn_short"))
	assert.False(t, IsValidConnectionID("conn_!!!!!!!!!!!!"))
	assert.True(t, IsValidConnectionID("conn_0123456789ab"))
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("avatars/u1", ".png")

	assert.True(t, strings.HasPrefix(key, "avatars/u1/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
}
