package chat

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReaderTrimsAndTerminates(t *testing.T) {
	r := NewLineReader(strings.NewReader("  first  \nsecond\nlast without newline"))

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "last without newline", line)

	_, err = r.ReadLine()
	assert.Equal(t, io.EOF, err)
}

func TestMockInputReader(t *testing.T) {
	r := NewMockInputReader([]string{"one", "two"})

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "one", line)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "two", line)

	_, err = r.ReadLine()
	assert.Equal(t, io.EOF, err)
}
