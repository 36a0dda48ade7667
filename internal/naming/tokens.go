package naming

import "bytes"

// A token is a maximal run of identifier bytes [A-Za-z0-9_]. Matching is
// whole-token only: "Foo" never matches inside "FooBarUnrelated".

func isTokenByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// forEachToken calls fn with the byte range of every token in content
func forEachToken(content []byte, fn func(start, end int)) {
	i := 0
	for i < len(content) {
		if !isTokenByte(content[i]) {
			i++
			continue
		}
		start := i
		for i < len(content) && isTokenByte(content[i]) {
			i++
		}
		fn(start, i)
	}
}

// CountToken returns how many whole-token occurrences of token content holds
func CountToken(content []byte, token string) int {
	n := 0
	forEachToken(content, func(start, end int) {
		if string(content[start:end]) == token {
			n++
		}
	})
	return n
}

// CountTokens counts every token of interest in a single pass
func CountTokens(content []byte, interesting map[string]bool) map[string]int {
	counts := make(map[string]int)
	forEachToken(content, func(start, end int) {
		tok := string(content[start:end])
		if interesting[tok] {
			counts[tok]++
		}
	})
	return counts
}

// ReplaceToken replaces whole-token occurrences of oldToken with newToken,
// leaving every other byte untouched. It returns the number of replacements.
func ReplaceToken(content []byte, oldToken, newToken string) ([]byte, int) {
	var out bytes.Buffer
	out.Grow(len(content))

	n := 0
	last := 0
	forEachToken(content, func(start, end int) {
		if string(content[start:end]) != oldToken {
			return
		}
		out.Write(content[last:start])
		out.WriteString(newToken)
		last = end
		n++
	})
	if n == 0 {
		return content, 0
	}
	out.Write(content[last:])
	return out.Bytes(), n
}

// IsToken reports whether s is a single whole token
func IsToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenByte(s[i]) {
			return false
		}
	}
	return true
}
