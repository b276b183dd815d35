package logger

import "regexp"

// Redaction masks token-like substrings before any message reaches a log
// sink: bearer tokens, key/secret assignments, long opaque token literals,
// and absolute user home paths.
var redactPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`), "bearer ***"},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|passwd|authorization)(["']?\s*[=:]\s*["']?)[^\s"'&]+`), "$1$2***"},
	{regexp.MustCompile(`\b[A-Za-z0-9_-]{32,}\b`), "***"},
	{regexp.MustCompile(`(/home/|/Users/)[^/\s]+`), "$1***"},
	{regexp.MustCompile(`(?i)C:\\Users\\[^\\\s]+`), `C:\Users\***`},
}

// Redact masks secret-like substrings in s.
func Redact(s string) string {
	for _, p := range redactPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}
