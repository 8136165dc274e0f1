package text

// Charset names a commonly-used group of codepoints for CacheGlyphs.
type Charset int

const (
	Lowercase Charset = iota // a-z
	Uppercase                // A-Z
	Digits                   // 0-9
	Punctuation              // ASCII punctuation and space
)

// Runes expands the given charsets into a codepoint slice. Overlaps are
// fine; CacheGlyphs deduplicates.
func Runes(sets ...Charset) []rune {
	var out []rune
	for _, s := range sets {
		switch s {
		case Lowercase:
			for r := 'a'; r <= 'z'; r++ {
				out = append(out, r)
			}
		case Uppercase:
			for r := 'A'; r <= 'Z'; r++ {
				out = append(out, r)
			}
		case Digits:
			for r := '0'; r <= '9'; r++ {
				out = append(out, r)
			}
		case Punctuation:
			out = append(out, []rune(" !\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~")...)
		}
	}
	return out
}

// ASCII returns the printable ASCII range (32..126).
func ASCII() []rune {
	out := make([]rune, 0, 95)
	for r := rune(32); r <= 126; r++ {
		out = append(out, r)
	}
	return out
}
