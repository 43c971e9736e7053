package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateForLog(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "short", in: "hello", limit: 10, want: "hello"},
		{name: "trimmed", in: "  hello  ", limit: 10, want: "hello"},
		{name: "cut", in: "abcdef", limit: 3, want: "abc..."},
		{name: "runes", in: "äöüß", limit: 2, want: "äö..."},
		{name: "zero limit", in: "abc", limit: 0, want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TruncateForLog(tc.in, tc.limit))
		})
	}
}

func TestNewBuildsBothEncodings(t *testing.T) {
	for _, json := range []bool{false, true} {
		l, err := New(json, true)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(-1), "debug level should be enabled")
	}

	l, err := New(false, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
