package graphstore

import (
	"strconv"
	"strings"
)

// sanitizedPrefix is prepended to every sanitized identifier. It guarantees
// the result never starts with a digit (illegal for a SQL identifier) and
// gives [Desanitize] a fixed, unambiguous anchor to strip before reversing
// the escape sequences — this is what makes the scheme exactly invertible
// rather than a heuristic.
const sanitizedPrefix = "vm_"

// Sanitize maps an untrusted label, relation, or property name into the
// backend's identifier grammar (letters, digits, underscore) using a
// reversible hex-escape: every byte that is not an ASCII letter or digit is
// replaced by `_u<hex>_`. [Desanitize] inverts this exactly.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name) + len(sanitizedPrefix))
	b.WriteString(sanitizedPrefix)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isSafeByte(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteString("_u")
		b.WriteString(strconv.FormatInt(int64(c), 16))
		b.WriteByte('_')
	}
	return b.String()
}

func isSafeByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Desanitize inverts [Sanitize]. Inputs not produced by Sanitize (i.e.
// lacking the [sanitizedPrefix]) are returned unchanged.
func Desanitize(sanitized string) string {
	s := strings.TrimPrefix(sanitized, sanitizedPrefix)
	if s == sanitized && sanitized != "" {
		// No prefix found — not a sanitized identifier; return as-is.
		return sanitized
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '_' && i+1 < len(s) && s[i+1] == 'u' {
			if end := strings.IndexByte(s[i+2:], '_'); end >= 0 {
				hex := s[i+2 : i+2+end]
				if v, err := strconv.ParseInt(hex, 16, 16); err == nil {
					b.WriteByte(byte(v))
					i += 2 + end + 1
					continue
				}
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
