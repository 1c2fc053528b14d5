package indexer

import (
	"path"
	"regexp"
	"strings"
)

const (
	// MinContentLength rejects stubs and bare re-exports. Files exactly at
	// the bound are accepted.
	MinContentLength = 100

	// MaxContentLength rejects generated and vendored blobs the ignore-list
	// missed. Files exactly at the bound are accepted.
	MaxContentLength = 100_000

	// maxImportDensity rejects barrel files. When at least this share of
	// non-blank lines is import/export plumbing there is no logic worth
	// summarizing.
	maxImportDensity = 0.70
)

// allowedExtensions is the source-code allow-list. Everything else is
// config, data or documentation and produces low-value summaries.
var allowedExtensions = map[string]bool{
	".go":     true,
	".ts":     true,
	".tsx":    true,
	".js":     true,
	".jsx":    true,
	".mjs":    true,
	".py":     true,
	".rb":     true,
	".java":   true,
	".kt":     true,
	".rs":     true,
	".c":      true,
	".h":      true,
	".cpp":    true,
	".hpp":    true,
	".cc":     true,
	".cs":     true,
	".php":    true,
	".swift":  true,
	".scala":  true,
	".vue":    true,
	".svelte": true,
	".sh":     true,
	".sql":    true,
}

// importLinePattern matches one import/export/require statement line across
// the languages in the allow-list.
var importLinePattern = regexp.MustCompile(`^\s*(` +
	`import[\s(]` + // Go, JS/TS, Java, Python "import x"
	`|export\s+(\*|\{|type\s|default\s+\{)` + // JS/TS re-exports
	`|export\s+.*\sfrom\s` +
	`|from\s+\S+\s+import\s` + // Python "from x import y"
	`|(const|let|var)\s+.*=\s*require\(` + // CommonJS
	`|require\s*\(` +
	`|using\s+\w` + // C#
	`|#include[\s<"]` + // C/C++
	`)`)

// ShouldProcess reports whether a repository file is worth summarizing and
// embedding. Pure and deterministic: extension allow-list, content length
// bounds, and an import-density cut for barrel files.
func ShouldProcess(filePath, content string) bool {
	if !allowedExtensions[strings.ToLower(path.Ext(filePath))] {
		return false
	}
	if len(content) < MinContentLength || len(content) > MaxContentLength {
		return false
	}

	var total, imports int
	for line := range strings.Lines(content) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		total++
		if importLinePattern.MatchString(trimmed) {
			imports++
		}
	}
	if total > 0 && float64(imports)/float64(total) >= maxImportDensity {
		return false
	}
	return true
}
