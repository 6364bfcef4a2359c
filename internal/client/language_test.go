package client

import "testing"

func TestExtensionFor(t *testing.T) {
	cases := []struct {
		tag  string
		want string
	}{
		{"javascript", "js"},
		{"JavaScript", "js"},
		{"golang", "go"},
		{"c++", "cpp"},
		{"yaml", "yml"},
		{"", "txt"},
		{"brainfuck", "txt"},
	}
	for _, tc := range cases {
		if got := ExtensionFor(tc.tag); got != tc.want {
			t.Errorf("ExtensionFor(%q) = %q, want %q", tc.tag, got, tc.want)
		}
	}
}

func TestSyntaxFor(t *testing.T) {
	if got := SyntaxFor("bash"); got != "shell" {
		t.Fatalf("SyntaxFor(bash) = %q", got)
	}
	if got := SyntaxFor("whitespace"); got != FallbackSyntax {
		t.Fatalf("unmapped tags should fall back to %q, got %q", FallbackSyntax, got)
	}
}

func TestLanguageFromFilename(t *testing.T) {
	lang, ok := LanguageFromFilename("script.tar.py")
	if !ok || lang.Tag != "python" {
		t.Fatalf("expected python from trailing extension, got %+v ok=%v", lang, ok)
	}
	if _, ok := LanguageFromFilename("README"); ok {
		t.Fatalf("extension-less names must not resolve")
	}
	lang, ok = LanguageFromFilename("component.TSX")
	if !ok || lang.Tag != "typescript" {
		t.Fatalf("alias extensions should resolve, got %+v ok=%v", lang, ok)
	}
}
