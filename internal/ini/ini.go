// Package ini reads and rewrites single values and entries in Unreal-style
// .ini files without disturbing any other byte of the file.
package ini

import (
	"bytes"
	"fmt"
	"strings"
)

// Entry is one key = value line
type Entry struct {
	Section string
	Key     string
	Value   string
	Line    int // 1-based
	Quoted  bool
}

type line struct {
	body []byte // without line ending
	eol  []byte
}

func splitLines(content []byte) []line {
	var lines []line
	for _, raw := range bytes.SplitAfter(content, []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		body := raw
		var eol []byte
		switch {
		case bytes.HasSuffix(body, []byte("\r\n")):
			body, eol = body[:len(body)-2], body[len(body)-2:]
		case bytes.HasSuffix(body, []byte("\n")):
			body, eol = body[:len(body)-1], body[len(body)-1:]
		}
		lines = append(lines, line{body: body, eol: eol})
	}
	return lines
}

// sectionName returns the header name if body is a [Section] line
func sectionName(body []byte) (string, bool) {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) >= 2 && trimmed[0] == '[' && trimmed[len(trimmed)-1] == ']' {
		return strings.TrimSpace(trimmed[1 : len(trimmed)-1]), true
	}
	return "", false
}

func isComment(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || trimmed[0] == ';' || trimmed[0] == '#'
}

// valueSpan locates the value inside a key line
type valueSpan struct {
	key        string
	start, end int // core value bounds within body, quotes excluded
	quoted     bool
}

func parseKeyLine(body []byte) (valueSpan, bool) {
	eq := bytes.IndexByte(body, '=')
	if eq <= 0 {
		return valueSpan{}, false
	}
	key := strings.TrimSpace(string(body[:eq]))
	if key == "" {
		return valueSpan{}, false
	}

	start := eq + 1
	end := len(body)
	for start < end && (body[start] == ' ' || body[start] == '\t') {
		start++
	}
	for end > start && (body[end-1] == ' ' || body[end-1] == '\t') {
		end--
	}

	quoted := false
	if end-start >= 2 && body[start] == '"' && body[end-1] == '"' {
		start++
		end--
		quoted = true
	}
	return valueSpan{key: key, start: start, end: end, quoted: quoted}, true
}

// Entries lists every key line with the section it belongs to
func Entries(content []byte) []Entry {
	var entries []Entry
	section := ""
	for i, l := range splitLines(content) {
		if name, ok := sectionName(l.body); ok {
			section = name
			continue
		}
		if isComment(l.body) {
			continue
		}
		span, ok := parseKeyLine(l.body)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Section: section,
			Key:     span.key,
			Value:   string(l.body[span.start:span.end]),
			Line:    i + 1,
			Quoted:  span.quoted,
		})
	}
	return entries
}

// Get returns the first value of key in section
func Get(content []byte, section, key string) (string, bool) {
	for _, e := range Entries(content) {
		if strings.EqualFold(e.Section, section) && strings.EqualFold(e.Key, key) {
			return e.Value, true
		}
	}
	return "", false
}

// ErrNoMatch reports that no line held the expected value
type ErrNoMatch struct {
	Section  string
	Key      string
	Expected string
	Found    []string
}

func (e *ErrNoMatch) Error() string {
	if len(e.Found) == 0 {
		return fmt.Sprintf("key [%s] %s not found", e.Section, e.Key)
	}
	return fmt.Sprintf("key [%s] %s holds %q, expected %q", e.Section, e.Key, strings.Join(e.Found, ","), e.Expected)
}

// Set rewrites every value of key in section that exactly equals oldValue.
// Quoting, whitespace and line endings are preserved. It fails when no line
// holds oldValue, so a drifted file is never silently rewritten.
func Set(content []byte, section, key, oldValue, newValue string) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(content) + len(newValue))

	current := ""
	replaced := 0
	var found []string

	for _, l := range splitLines(content) {
		if name, ok := sectionName(l.body); ok {
			current = name
		} else if !isComment(l.body) && strings.EqualFold(current, section) {
			if span, ok := parseKeyLine(l.body); ok && strings.EqualFold(span.key, key) {
				value := string(l.body[span.start:span.end])
				if value == oldValue {
					out.Write(l.body[:span.start])
					out.WriteString(newValue)
					out.Write(l.body[span.end:])
					out.Write(l.eol)
					replaced++
					continue
				}
				found = append(found, value)
			}
		}
		out.Write(l.body)
		out.Write(l.eol)
	}

	if replaced == 0 {
		return nil, &ErrNoMatch{Section: section, Key: key, Expected: oldValue, Found: found}
	}
	return out.Bytes(), nil
}

func eolOf(lines []line) []byte {
	for _, l := range lines {
		if len(l.eol) > 0 {
			return l.eol
		}
	}
	return []byte("\n")
}

func join(lines []line) []byte {
	var out bytes.Buffer
	for _, l := range lines {
		out.Write(l.body)
		out.Write(l.eol)
	}
	return out.Bytes()
}

// Append adds key=value as the last entry of section, using the file's line
// endings. A missing section is added at the end of the file. Remove with the
// same arguments restores the original bytes.
func Append(content []byte, section, key, value string) []byte {
	lines := splitLines(content)
	eol := eolOf(lines)
	entry := line{body: []byte(key + "=" + value), eol: eol}

	insertAt := -1
	current := ""
	for i, l := range lines {
		if name, ok := sectionName(l.body); ok {
			current = name
			if strings.EqualFold(name, section) {
				insertAt = i + 1
			}
			continue
		}
		if strings.EqualFold(current, section) && len(bytes.TrimSpace(l.body)) > 0 {
			insertAt = i + 1
		}
	}

	if insertAt < 0 {
		var out bytes.Buffer
		out.Write(content)
		if len(lines) > 0 {
			if len(lines[len(lines)-1].eol) == 0 {
				out.Write(eol)
			}
			out.Write(eol)
		}
		out.WriteString("[" + section + "]")
		out.Write(eol)
		out.Write(entry.body)
		out.Write(entry.eol)
		return out.Bytes()
	}

	prev := &lines[insertAt-1]
	if len(prev.eol) == 0 {
		prev.eol, entry.eol = eol, nil
	}
	lines = append(lines[:insertAt], append([]line{entry}, lines[insertAt:]...)...)
	return join(lines)
}

// Remove drops the last key=value line of section. A section left empty at
// the end of the file is dropped together with the blank line before it.
func Remove(content []byte, section, key, value string) ([]byte, error) {
	lines := splitLines(content)

	target, header := -1, -1
	current, currentHeader := "", -1
	var found []string
	for i, l := range lines {
		if name, ok := sectionName(l.body); ok {
			current, currentHeader = name, i
			continue
		}
		if isComment(l.body) || !strings.EqualFold(current, section) {
			continue
		}
		span, ok := parseKeyLine(l.body)
		if !ok || !strings.EqualFold(span.key, key) {
			continue
		}
		start, end := span.start, span.end
		if span.quoted {
			start, end = start-1, end+1
		}
		raw := string(l.body[start:end])
		if raw == value {
			target, header = i, currentHeader
			continue
		}
		found = append(found, raw)
	}
	if target < 0 {
		return nil, &ErrNoMatch{Section: section, Key: key, Expected: value, Found: found}
	}

	if len(lines[target].eol) == 0 && target > 0 {
		lines[target-1].eol = nil
	}
	lines = append(lines[:target], lines[target+1:]...)

	if header >= 0 && header == len(lines)-1 {
		lines = lines[:header]
		if header > 0 && len(bytes.TrimSpace(lines[header-1].body)) == 0 {
			lines = lines[:header-1]
		}
	}
	return join(lines), nil
}
