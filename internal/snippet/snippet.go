// Package snippet reduces raw article HTML to a short plain-text
// excerpt for search and list previews.
package snippet

import (
	"strings"

	nethtml "golang.org/x/net/html"
)

// Text strips markup from an HTML fragment and collapses whitespace,
// truncating the result to at most maxRunes runes. Script and style
// bodies are dropped entirely.
func Text(htmlContent string, maxRunes int) string {
	if strings.TrimSpace(htmlContent) == "" {
		return ""
	}

	tokenizer := nethtml.NewTokenizer(strings.NewReader(htmlContent))
	var builder strings.Builder
	skipDepth := 0

	for {
		tokenType := tokenizer.Next()
		if tokenType == nethtml.ErrorToken {
			break
		}
		switch tokenType {
		case nethtml.StartTagToken:
			name, _ := tokenizer.TagName()
			if skippedTag(string(name)) {
				skipDepth++
			}
		case nethtml.EndTagToken:
			name, _ := tokenizer.TagName()
			if skippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case nethtml.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteByte(' ')
			}
			builder.WriteString(text)
		}
		if maxRunes > 0 && builder.Len() > maxRunes*4 {
			break
		}
	}

	out := strings.Join(strings.Fields(builder.String()), " ")
	if maxRunes > 0 {
		runes := []rune(out)
		if len(runes) > maxRunes {
			out = strings.TrimSpace(string(runes[:maxRunes]))
		}
	}
	return out
}

func skippedTag(name string) bool {
	switch name {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}
