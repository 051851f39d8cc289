package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnippet(t *testing.T) {
	assert.Equal(t, "Hello world", Snippet("<p>Hello <b>world</b></p>"))
	assert.Equal(t, "a & b", Snippet("a &amp; b"))

	long := strings.Repeat("界", 200)
	got := Snippet(long)
	assert.Equal(t, SnippetLength, len([]rune(got)))
}

func TestFirstImage(t *testing.T) {
	assert.Equal(t, "", FirstImage("plain text"))
	assert.Equal(t, "https://img.example/a.png",
		FirstImage(`<p>x</p><img src="https://img.example/a.png"><img src="b.png">`))
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := RenderMarkdown("# Title\n\n<script>alert(1)</script>\n\n**bold**")
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script>")
}

func TestEnhanceHTMLContent(t *testing.T) {
	out := string(EnhanceHTMLContent(`<p><img src="https://x/y.png"></p><p>https://youtu.be/abc123</p>`))
	assert.Contains(t, out, `loading="lazy"`)
	assert.Contains(t, out, "youtube.com/embed/abc123")
}

func TestTrendScore(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0.0, TrendScore(now, 0, 0, 0, 0))

	forked := TrendScore(now, 0, 1, 0, 0)
	reacted := TrendScore(now, 1, 0, 0, 0)
	assert.Greater(t, forked, reacted)

	old := TrendScore(now.Add(-72*time.Hour), 0, 1, 0, 0)
	assert.Greater(t, forked, old)
}

func TestTTLCache(t *testing.T) {
	c := NewTTLCache[string](2, time.Hour)
	c.Set("a", "1")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	c.Set("b", "2")
	c.Set("c", "3")
	_, ok = c.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")

	expired := NewTTLCache[int](4, -time.Second)
	expired.Set("x", 1)
	_, ok = expired.Get("x")
	assert.False(t, ok)
}

func TestIntInRange(t *testing.T) {
	assert.Equal(t, 10, IntInRange("", 10, 1, 100))
	assert.Equal(t, 1, IntInRange("-3", 10, 1, 100))
	assert.Equal(t, 100, IntInRange("500", 10, 1, 100))
	assert.Equal(t, 7, IntInRange("7", 10, 1, 100))
}

func TestDefaultAvatarStable(t *testing.T) {
	assert.Equal(t, DefaultAvatar("u1"), DefaultAvatar("u1"))
}
