package utils

import (
	"bytes"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghtml "github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			ghtml.WithHardWraps(),
			ghtml.WithXHTML(),
		),
	)
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

func init() {
	ugcPolicy.AllowImages()
	ugcPolicy.AddTargetBlankToFullyQualifiedLinks(true)
	ugcPolicy.RequireNoReferrerOnLinks(true)
}

// RenderMarkdown converts markdown to sanitized HTML. On a conversion error
// the escaped source is returned.
func RenderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return html.EscapeString(source)
	}
	return string(ugcPolicy.SanitizeBytes(buf.Bytes()))
}

// SanitizeHTML applies the user content policy to stored segment content.
func SanitizeHTML(content string) string {
	return ugcPolicy.Sanitize(content)
}

// PlainText strips every tag and collapses whitespace.
func PlainText(content string) string {
	text := html.UnescapeString(strictPolicy.Sanitize(content))
	return strings.Join(strings.Fields(text), " ")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

const SnippetLength = 150

// Snippet derives the list-view preview of a thread from its first segment.
func Snippet(firstSegment string) string {
	return Truncate(PlainText(firstSegment), SnippetLength)
}
