package security

import (
	"strings"
	"testing"
)

// TestSanitizeText_RemovesAllTags はテキスト用ポリシーがすべてのタグを除去することを検証する。
func TestSanitizeText_RemovesAllTags(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"PlainText", "新入社員向けの研修です", "新入社員向けの研修です"},
		{"ScriptTag", `<script>alert("xss")</script>研修計画`, "研修計画"},
		{"BoldTag", "<strong>重要</strong>な項目", "重要な項目"},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.SanitizeText(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeContent_AllowsDisplayTags は本文用ポリシーが表示用タグを通過させることを検証する。
func TestSanitizeContent_AllowsDisplayTags(t *testing.T) {
	s := NewContentSanitizer()

	input := "<h2>学習目標</h2><ul><li>基礎を理解する</li></ul><p><strong>重要</strong></p>"
	got := s.SanitizeContent(input)

	for _, tag := range []string{"<h2>", "<ul>", "<li>", "<strong>"} {
		if !strings.Contains(got, tag) {
			t.Errorf("sanitized content should contain %q, got %q", tag, got)
		}
	}
}

// TestSanitizeContent_RemovesScript は本文用ポリシーがscriptタグを除去することを検証する。
func TestSanitizeContent_RemovesScript(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p>本文</p><script>alert("xss")</script><iframe src="https://evil.example.com"></iframe>`
	got := s.SanitizeContent(input)

	if strings.Contains(got, "<script") || strings.Contains(got, "<iframe") {
		t.Errorf("sanitized content should not contain script/iframe, got %q", got)
	}
	if !strings.Contains(got, "<p>本文</p>") {
		t.Errorf("sanitized content should keep safe tags, got %q", got)
	}
}

// TestSanitizeContent_RemovesEventAttributes はon*イベント属性が除去されることを検証する。
func TestSanitizeContent_RemovesEventAttributes(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p onclick="alert('xss')">クリック</p>`
	got := s.SanitizeContent(input)

	if strings.Contains(got, "onclick") {
		t.Errorf("sanitized content should not contain onclick, got %q", got)
	}
}

// TestSanitizeContent_ImgHTTPSOnly はimgのsrcがhttpsのみ許可されることを検証する。
func TestSanitizeContent_ImgHTTPSOnly(t *testing.T) {
	s := NewContentSanitizer()

	httpsImg := `<img src="https://cdn.smartslate.io/diagram.png" alt="図">`
	if got := s.SanitizeContent(httpsImg); !strings.Contains(got, "https://cdn.smartslate.io/diagram.png") {
		t.Errorf("https img src should be kept, got %q", got)
	}

	jsImg := `<img src="javascript:alert('xss')">`
	if got := s.SanitizeContent(jsImg); strings.Contains(got, "javascript:") {
		t.Errorf("javascript scheme should be removed, got %q", got)
	}
}

// TestSanitizeContent_Idempotent はサニタイズが冪等であることを検証する。
func TestSanitizeContent_Idempotent(t *testing.T) {
	s := NewContentSanitizer()

	input := `<h2>概要</h2><script>bad()</script><p>本文 <em>強調</em></p>`
	once := s.SanitizeContent(input)
	twice := s.SanitizeContent(once)

	if once != twice {
		t.Errorf("sanitize should be idempotent: once=%q twice=%q", once, twice)
	}
}
