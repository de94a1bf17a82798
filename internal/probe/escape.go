package probe

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// decodeUnicodeEscapes rewrites literal \uXXXX sequences (including
// surrogate pairs) into the characters they name. The speedtest CLI
// double-escapes non-ASCII server locations in its JSON output, so a
// decoded string can still carry these sequences. Anything that is not
// a well-formed escape passes through untouched.
func decodeUnicodeEscapes(s string) string {
	if !strings.Contains(s, `\u`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, width, ok := decodeEscapeAt(s, i)
		if !ok {
			b.WriteByte(s[i])
			i++
			continue
		}
		if utf16.IsSurrogate(r) && i+width < len(s) {
			r2, width2, ok2 := decodeEscapeAt(s, i+width)
			if ok2 && utf16.IsSurrogate(r2) {
				if combined := utf16.DecodeRune(r, r2); combined != utf8.RuneError {
					b.WriteRune(combined)
					i += width + width2
					continue
				}
			}
		}
		if utf16.IsSurrogate(r) {
			b.WriteRune(utf8.RuneError)
		} else {
			b.WriteRune(r)
		}
		i += width
	}
	return b.String()
}

func decodeEscapeAt(s string, i int) (rune, int, bool) {
	if i+6 > len(s) || s[i] != '\\' || s[i+1] != 'u' {
		return 0, 0, false
	}
	val, err := strconv.ParseUint(s[i+2:i+6], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return rune(val), 6, true
}
