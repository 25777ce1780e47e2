package flush

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.NotEqual(t, a, b)

	id, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Equal(t, "b", gen.Generate(), "last id repeats once exhausted")

	assert.Empty(t, NewFixedGenerator().Generate())
}
