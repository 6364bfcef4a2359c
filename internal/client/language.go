package client

import (
	"path/filepath"
	"strings"
)

// Language describes one supported language tag: its download file extension
// and the syntax-highlighting mode an editor widget should use. The set is
// deliberately closed so it can be audited; anything outside it falls back to
// plain text.
type Language struct {
	Tag       string
	Extension string
	Syntax    string
	Aliases   []string
}

const (
	// FallbackExtension is used for download filenames of unmapped languages.
	FallbackExtension = "txt"
	// FallbackSyntax is the general-purpose highlighting mode.
	FallbackSyntax = "plaintext"
)

var languages = []Language{
	{Tag: "javascript", Extension: "js", Syntax: "javascript", Aliases: []string{"js", "node", "jsx"}},
	{Tag: "typescript", Extension: "ts", Syntax: "typescript", Aliases: []string{"ts", "tsx"}},
	{Tag: "python", Extension: "py", Syntax: "python"},
	{Tag: "go", Extension: "go", Syntax: "go", Aliases: []string{"golang"}},
	{Tag: "rust", Extension: "rs", Syntax: "rust"},
	{Tag: "c", Extension: "c", Syntax: "c"},
	{Tag: "cpp", Extension: "cpp", Syntax: "cpp", Aliases: []string{"c++"}},
	{Tag: "csharp", Extension: "cs", Syntax: "csharp", Aliases: []string{"c#"}},
	{Tag: "java", Extension: "java", Syntax: "java"},
	{Tag: "kotlin", Extension: "kt", Syntax: "kotlin"},
	{Tag: "swift", Extension: "swift", Syntax: "swift"},
	{Tag: "php", Extension: "php", Syntax: "php"},
	{Tag: "ruby", Extension: "rb", Syntax: "ruby"},
	{Tag: "bash", Extension: "sh", Syntax: "shell", Aliases: []string{"shell", "sh"}},
	{Tag: "sql", Extension: "sql", Syntax: "sql"},
	{Tag: "html", Extension: "html", Syntax: "html"},
	{Tag: "css", Extension: "css", Syntax: "css"},
	{Tag: "scss", Extension: "scss", Syntax: "scss"},
	{Tag: "json", Extension: "json", Syntax: "json"},
	{Tag: "xml", Extension: "xml", Syntax: "xml"},
	{Tag: "yaml", Extension: "yml", Syntax: "yaml", Aliases: []string{"yml"}},
	{Tag: "markdown", Extension: "md", Syntax: "markdown", Aliases: []string{"md"}},
	{Tag: "lua", Extension: "lua", Syntax: "lua"},
	{Tag: "perl", Extension: "pl", Syntax: "perl"},
	{Tag: "r", Extension: "r", Syntax: "r"},
	{Tag: "dart", Extension: "dart", Syntax: "dart"},
}

var languageIndex = buildLanguageIndex()

func buildLanguageIndex() map[string]Language {
	index := make(map[string]Language, len(languages)*2)
	for _, lang := range languages {
		index[lang.Tag] = lang
		for _, alias := range lang.Aliases {
			index[alias] = lang
		}
	}
	return index
}

// LookupLanguage resolves a language tag (or alias) to its table entry.
func LookupLanguage(tag string) (Language, bool) {
	lang, ok := languageIndex[strings.ToLower(strings.TrimSpace(tag))]
	return lang, ok
}

// ExtensionFor returns the download file extension for a language tag, never
// empty: unmapped tags get the plain-text fallback.
func ExtensionFor(tag string) string {
	if lang, ok := LookupLanguage(tag); ok {
		return lang.Extension
	}
	return FallbackExtension
}

// SyntaxFor returns the highlighting mode for a language tag, defaulting to
// the general-purpose mode when unmapped.
func SyntaxFor(tag string) string {
	if lang, ok := LookupLanguage(tag); ok {
		return lang.Syntax
	}
	return FallbackSyntax
}

// LanguageFromFilename derives the language from a filename's trailing
// extension. Extension-less or unmapped names resolve to the fallback mode.
func LanguageFromFilename(name string) (Language, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return Language{}, false
	}
	for _, lang := range languages {
		if lang.Extension == ext {
			return lang, true
		}
		for _, alias := range lang.Aliases {
			if alias == ext {
				return lang, true
			}
		}
	}
	return Language{}, false
}
