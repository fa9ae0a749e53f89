package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "Tom &amp; Jerry &lt;3", EscapeHTML("Tom & Jerry <3"))
	assert.Equal(t, "<b>a&lt;b</b>", Bold("a<b"))
}

func TestLines(t *testing.T) {
	assert.Equal(t, "a\nc", Lines("a", "", "c"))
	assert.Equal(t, "-", OrDash("  "))
	assert.Equal(t, "x", OrDash("x"))
}
