package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, spec string, args ...Arg) string {
	var sb strings.Builder
	_, err := Fprintf(&sb, spec, args)
	require.NoError(t, err)
	return sb.String()
}

func TestFprintfDecimalAndWidth(t *testing.T) {
	assert.Equal(t, "  42", render(t, "%4d", Arg{Kind: KindInt, I: 42}))
	assert.Equal(t, "0042", render(t, "%04d", Arg{Kind: KindInt, I: 42}))
	assert.Equal(t, "-7", render(t, "%d", Arg{Kind: KindInt, I: -7}))
}

func TestFprintfHexOctalBinary(t *testing.T) {
	assert.Equal(t, "ff", render(t, "%x", Arg{Kind: KindInt, I: 255}))
	assert.Equal(t, "FF", render(t, "%X", Arg{Kind: KindInt, I: 255}))
	assert.Equal(t, "17", render(t, "%o", Arg{Kind: KindInt, I: 15}))
	assert.Equal(t, "101", render(t, "%b", Arg{Kind: KindInt, I: 5}))
}

func TestFprintfBinaryNegativePrefix(t *testing.T) {
	out := render(t, "%b", Arg{Kind: KindInt, I: -1})
	assert.True(t, strings.HasPrefix(out, ".."))
}

func TestFprintfStringPrecisionAndLeftAlign(t *testing.T) {
	assert.Equal(t, "hel", render(t, "%.3s", Arg{Kind: KindString, S: "hello"}))
	assert.Equal(t, "hi   ", render(t, "%-5s", Arg{Kind: KindString, S: "hi"}))
}

func TestFprintfFloatPrecision(t *testing.T) {
	assert.Equal(t, "3.14", render(t, "%.2f", Arg{Kind: KindFloat, F: 3.14159}))
}

func TestFprintfPointer(t *testing.T) {
	assert.Equal(t, "$0001E240", render(t, "%p", Arg{Kind: KindPointer, Ptr: 123456}))
}

func TestFprintfLiteralPercent(t *testing.T) {
	assert.Equal(t, "100%", render(t, "100%%"))
}

func TestFprintfCharVerb(t *testing.T) {
	assert.Equal(t, "A", render(t, "%c", Arg{Kind: KindChar, I: 'A'}))
}
