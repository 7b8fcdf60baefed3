package protocol

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Pattern returns the normalized shape of a payload: tokens joined by ';'
// with every run of digits collapsed to '#'.
func Pattern(raw string) string {
	joined := strings.Join(Tokenize(raw), ";")
	var b strings.Builder
	b.Grow(len(joined))
	inDigits := false
	for i := 0; i < len(joined); i++ {
		ch := joined[i]
		if ch >= '0' && ch <= '9' {
			if !inDigits {
				b.WriteByte('#')
				inDigits = true
			}
			continue
		}
		inDigits = false
		b.WriteByte(ch)
	}
	return b.String()
}

// Fingerprint returns a stable hash of Pattern(raw), so payloads differing
// only in numeric content share a fingerprint.
func Fingerprint(raw string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(Pattern(raw)))
}
