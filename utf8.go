package wsclient

import "unicode/utf8"

// utf8Validator checks that a sequence of byte slices, taken together, form
// valid UTF-8 — without ever holding the full message in memory. No example
// in the retrieved pack validates UTF-8 incrementally (every occurrence
// calls unicode/utf8.Valid on an already-fully-buffered message); this is
// built directly against the standard library's rune decoder, which is
// capable of reporting "incomplete rune at end of input" distinctly from
// "invalid encoding", exactly what streaming validation needs.
type utf8Validator struct {
	carry    [utf8.UTFMax]byte
	carryLen int
}

// push validates the next chunk of a message against any bytes carried over
// from the previous chunk. It reports false on the first byte sequence that
// can never become valid regardless of what bytes follow.
func (v *utf8Validator) push(chunk []byte) bool {
	i := 0

	if v.carryLen > 0 {
		need := utf8.UTFMax - v.carryLen
		if need > len(chunk) {
			need = len(chunk)
		}
		var combined [utf8.UTFMax]byte
		total := copy(combined[:], v.carry[:v.carryLen])
		total += copy(combined[total:], chunk[:need])
		buf := combined[:total]

		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size <= 1 {
			if total < utf8.UTFMax && !utf8.FullRune(buf) {
				// Still incomplete even with the extra bytes; keep waiting.
				v.carryLen = copy(v.carry[:], buf)
				return true
			}
			return false
		}
		v.carryLen = 0
		i = size - (total - need) // bytes of this chunk consumed by the completed rune
		if i < 0 {
			i = 0
		}
	}

	for i < len(chunk) {
		r, size := utf8.DecodeRune(chunk[i:])
		if r != utf8.RuneError || size > 1 {
			i += size
			continue
		}
		if size == 0 {
			break
		}
		if size == 1 && len(chunk)-i < utf8.UTFMax && !utf8.FullRune(chunk[i:]) {
			// Might be valid once the next chunk arrives; carry it.
			v.carryLen = copy(v.carry[:], chunk[i:])
			return true
		}
		return false
	}
	return true
}

// finish must be called once the final fragment of the message has been
// pushed; it reports false if a rune was left incomplete at the very end of
// the message (which is invalid, since no more bytes are coming).
func (v *utf8Validator) finish() bool {
	ok := v.carryLen == 0
	v.carryLen = 0
	return ok
}
