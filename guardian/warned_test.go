package guardian

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarnedSet(t *testing.T) {
	ws := NewWarnedSet()
	assert.False(t, ws.Contains("foo"))
	assert.Equal(t, 0, ws.Len())

	assert.True(t, ws.Add("foo"))
	assert.False(t, ws.Add("foo"))
	assert.True(t, ws.Add("bar"))
	assert.True(t, ws.Contains("foo"))
	assert.Equal(t, 2, ws.Len())
	assert.Equal(t, []string{"bar", "foo"}, ws.Snapshot())

	assert.True(t, ws.Remove("foo"))
	assert.False(t, ws.Remove("foo"))
	assert.False(t, ws.Contains("foo"))
	assert.Equal(t, []string{"bar"}, ws.Snapshot())
}

func TestWarnedSetsAreIndependent(t *testing.T) {
	first := NewWarnedSet()
	second := NewWarnedSet()

	first.Add("foo")
	assert.False(t, second.Contains("foo"))
}
