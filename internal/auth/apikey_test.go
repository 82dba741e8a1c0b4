package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKeyValidation(t *testing.T) {
	a := NewAPIKeyAuth([]string{"alpha", "beta"})

	assert.True(t, a.IsValidKey("alpha"))
	assert.True(t, a.IsValidKey("beta"))
	assert.False(t, a.IsValidKey("gamma"))
	assert.False(t, a.Open())
}

func TestAPIKeyAddRemove(t *testing.T) {
	a := NewAPIKeyAuth(nil)
	assert.True(t, a.Open())

	a.AddKey("alpha")
	assert.False(t, a.Open())
	assert.True(t, a.IsValidKey("alpha"))

	a.RemoveKey("alpha")
	assert.False(t, a.IsValidKey("alpha"))
	assert.True(t, a.Open())
}
