package generator

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

//nolint:gochecknoglobals // read-only lookup table
var smallWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "but": true,
	"by": true, "for": true, "in": true, "of": true, "on": true, "or": true,
	"the": true, "to": true, "with": true, "via": true, "vs": true, "nor": true,
}

var lineBreakPattern = regexp.MustCompile(`(?i)<br\s*/?>`)

// TitleCase capitalizes each word of text except small joining words. The first word
// after every <br> break is always capitalized and break tags are kept as written.
func TitleCase(text string) string {
	if text == "" {
		return ""
	}

	var sb strings.Builder
	firstSegment := true
	last := 0
	writeSegment := func(segment string) {
		words := strings.Fields(segment)
		for i, word := range words {
			if i > 0 {
				sb.WriteByte(' ')
			}
			lower := strings.ToLower(word)
			if (i == 0 && firstSegment) || !smallWords[lower] {
				sb.WriteString(capitalize(lower))
			} else {
				sb.WriteString(lower)
			}
		}
		if len(words) > 0 {
			firstSegment = false
		}
	}

	for _, loc := range lineBreakPattern.FindAllStringIndex(text, -1) {
		writeSegment(text[last:loc[0]])
		sb.WriteString(text[loc[0]:loc[1]])
		firstSegment = true
		last = loc[1]
	}
	writeSegment(text[last:])
	return sb.String()
}

// capitalize upper-cases the first rune of an already lower-cased word.
func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}

// titleRoles are the roles rendered as headings.
//
//nolint:gochecknoglobals // read-only lookup table
var titleRoles = map[string]bool{"label": true, "name": true, "title": true, "heading": true}

// titleCaseLabels applies TitleCase to every heading-like field.
func titleCaseLabels(fields map[string]string) {
	for id, value := range fields {
		idx := strings.LastIndexByte(id, '_')
		if idx >= 0 && titleRoles[id[idx+1:]] {
			fields[id] = TitleCase(value)
		}
	}
}
