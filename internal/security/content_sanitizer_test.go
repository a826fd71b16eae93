package security

import (
	"strings"
	"testing"
)

func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "段落タグは保持される",
			input:        "<p>hello world</p>",
			wantContains: []string{"<p>hello world</p>"},
		},
		{
			name:         "改行タグは保持される",
			input:        "line1<br>line2",
			wantContains: []string{"<br"},
		},
		{
			name:         "リストタグは保持される",
			input:        "<ul><li>one</li><li>two</li></ul>",
			wantContains: []string{"<ul>", "<li>one</li>", "<li>two</li>"},
		},
		{
			name:         "順序付きリストタグは保持される",
			input:        "<ol><li>first</li></ol>",
			wantContains: []string{"<ol>", "<li>first</li>"},
		},
		{
			name:         "引用タグは保持される",
			input:        "<blockquote>quoted text</blockquote>",
			wantContains: []string{"<blockquote>quoted text</blockquote>"},
		},
		{
			name:         "コードタグは保持される",
			input:        "<pre><code>fmt.Println()</code></pre>",
			wantContains: []string{"<pre>", "<code>fmt.Println()</code>"},
		},
		{
			name:         "強調タグは保持される",
			input:        "<strong>bold</strong> and <em>italic</em>",
			wantContains: []string{"<strong>bold</strong>", "<em>italic</em>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, want substring %q", tt.input, got, want)
				}
			}
		})
	}
}

func TestSanitize_ForbiddenTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantAbsent   []string
		wantContains []string
	}{
		{
			name:       "scriptタグは除去される",
			input:      "<p>hello</p><script>alert('xss')</script>",
			wantAbsent: []string{"<script>", "alert"},
			wantContains: []string{
				"<p>hello</p>",
			},
		},
		{
			name:       "iframeタグは除去される",
			input:      `<iframe src="https://evil.example.com"></iframe><p>safe</p>`,
			wantAbsent: []string{"<iframe", "evil.example.com"},
			wantContains: []string{
				"<p>safe</p>",
			},
		},
		{
			name:       "styleタグは除去される",
			input:      "<style>body { display: none; }</style><p>visible</p>",
			wantAbsent: []string{"<style>", "display"},
			wantContains: []string{
				"<p>visible</p>",
			},
		},
		{
			name:       "divタグは除去されテキストのみ残る",
			input:      "<div>wrapped text</div>",
			wantAbsent: []string{"<div>"},
			wantContains: []string{
				"wrapped text",
			},
		},
		{
			name:       "imgタグは除去される",
			input:      `<p>text</p><img src="https://example.com/a.png" alt="a">`,
			wantAbsent: []string{"<img"},
			wantContains: []string{
				"<p>text</p>",
			},
		},
		{
			name:       "onclickイベント属性は除去される",
			input:      `<p onclick="alert('xss')">click me</p>`,
			wantAbsent: []string{"onclick", "alert"},
			wantContains: []string{
				"<p>click me</p>",
			},
		},
		{
			name:       "onerrorイベント属性は除去される",
			input:      `<strong onerror="steal()">text</strong>`,
			wantAbsent: []string{"onerror", "steal"},
			wantContains: []string{
				"<strong>text</strong>",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.input, got, absent)
				}
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, want substring %q", tt.input, got, want)
				}
			}
		})
	}
}

func TestSanitize_Links(t *testing.T) {
	sanitizer := NewContentSanitizer()

	t.Run("httpsリンクはtarget_blankとrel付きで保持される", func(t *testing.T) {
		got := sanitizer.Sanitize(`<a href="https://example.com">link</a>`)

		wantSubstrings := []string{
			`href="https://example.com"`,
			`target="_blank"`,
			"noopener",
			"noreferrer",
			">link</a>",
		}
		for _, want := range wantSubstrings {
			if !strings.Contains(got, want) {
				t.Errorf("Sanitize(link) = %q, want substring %q", got, want)
			}
		}
	})

	t.Run("javascriptスキームのリンクは無効化される", func(t *testing.T) {
		got := sanitizer.Sanitize(`<a href="javascript:alert('xss')">click</a>`)
		if strings.Contains(got, "javascript:") {
			t.Errorf("Sanitize(javascript link) = %q, should not contain javascript scheme", got)
		}
	})

	t.Run("httpスキームのリンクはhref除去される", func(t *testing.T) {
		got := sanitizer.Sanitize(`<a href="http://example.com">plain</a>`)
		if strings.Contains(got, `href="http://example.com"`) {
			t.Errorf("Sanitize(http link) = %q, should not keep http href", got)
		}
	})

	t.Run("相対URLのリンクはhref除去される", func(t *testing.T) {
		got := sanitizer.Sanitize(`<a href="/internal/path">rel</a>`)
		if strings.Contains(got, `href="/internal/path"`) {
			t.Errorf("Sanitize(relative link) = %q, should not keep relative href", got)
		}
	})
}

func TestSanitize_EmptyInput(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty string", got)
	}
}

func TestSanitize_PlainText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := "plain text without any tags"
	if got := sanitizer.Sanitize(input); got != input {
		t.Errorf("Sanitize(%q) = %q, want unchanged", input, got)
	}
}

// TestSanitize_Idempotent は同一入力に対するサニタイズが冪等であることを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<p>hello <strong>world</strong></p><script>bad()</script><a href="https://example.com">link</a>`
	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)

	if first != second {
		t.Errorf("Sanitize is not idempotent:\nfirst  = %q\nsecond = %q", first, second)
	}
}
