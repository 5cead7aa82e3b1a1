package utils

// TruncateRunes shortens s to at most n runes. Unlike a byte slice it
// never splits a multi-byte character, so the result is always valid
// UTF-8.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
