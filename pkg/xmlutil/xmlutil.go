// Package xmlutil wraps user-supplied text in XML tags for prompt templates.
package xmlutil

import (
	"encoding/xml"
	"strings"
)

// Escape replaces characters with special meaning in XML so that user text
// cannot close or open tags inside a prompt.
func Escape(s string) string {
	var buf strings.Builder
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		// EscapeText only fails on invalid UTF-8; return original on error.
		return s
	}
	return buf.String()
}

// Tag returns <name>escaped(s)</name>.
func Tag(name, s string) string {
	return "<" + name + ">" + Escape(s) + "</" + name + ">"
}

// List renders one <name> element per item, newline separated. It returns
// the empty string for an empty list.
func List(name string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it) == "" {
			continue
		}
		parts = append(parts, Tag(name, it))
	}
	return strings.Join(parts, "\n")
}
