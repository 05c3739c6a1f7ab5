package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_NilPassesThrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ctx"))
	assert.NoError(t, Wrapf(nil, "ctx %d", 1))
}

func TestWrap_PreservesChain(t *testing.T) {
	err := Wrap(ErrTransport, "call completion")
	require.Error(t, err)
	assert.True(t, Is(err, ErrTransport))
	assert.Equal(t, "call completion: transport failure", err.Error())
}

func TestWrapf_FormatsMessage(t *testing.T) {
	err := Wrapf(ErrSessionNotFound, "load session %s", "abc")
	assert.Equal(t, "load session abc: session not found", err.Error())
	assert.True(t, Is(fmt.Errorf("outer: %w", err), ErrSessionNotFound))
}
