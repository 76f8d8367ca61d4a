package wsclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUTF8ValidatorSingleChunk(t *testing.T) {
	var v utf8Validator
	assert.True(t, v.push([]byte("hello, 世界")))
	assert.True(t, v.finish())
}

func TestUTF8ValidatorSplitAcrossChunks(t *testing.T) {
	// U+4E16 "世" is E4 B8 96 in UTF-8; split after the first byte.
	full := []byte("世")
	var v utf8Validator
	assert.True(t, v.push(full[:1]))
	assert.True(t, v.push(full[1:]))
	assert.True(t, v.finish())
}

func TestUTF8ValidatorSplitByteByByte(t *testing.T) {
	full := []byte("日本語")
	var v utf8Validator
	for i := range full {
		assert.True(t, v.push(full[i:i+1]), "byte %d", i)
	}
	assert.True(t, v.finish())
}

func TestUTF8ValidatorTruncatedAtEnd(t *testing.T) {
	full := []byte("世")
	var v utf8Validator
	assert.True(t, v.push(full[:2])) // incomplete rune, could still complete
	assert.False(t, v.finish())      // but no more bytes are coming
}

func TestUTF8ValidatorInvalidByte(t *testing.T) {
	var v utf8Validator
	assert.False(t, v.push([]byte{0xFF, 0xFE}))
}

func TestUTF8ValidatorOverlongRejected(t *testing.T) {
	// 0xC0 0x80 is an overlong encoding of NUL, never valid UTF-8.
	var v utf8Validator
	assert.False(t, v.push([]byte{0xC0, 0x80}))
}

func TestUTF8ValidatorEmptyChunks(t *testing.T) {
	var v utf8Validator
	assert.True(t, v.push(nil))
	assert.True(t, v.push([]byte("ok")))
	assert.True(t, v.finish())
}
