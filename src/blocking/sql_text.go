package blocking

import (
	"regexp"
)

var literalPattern = regexp.MustCompile(`'[^']*'|\d+|".*?"`)

// AnonymizeSQL replaces string and numeric literals with '?'
func AnonymizeSQL(query string) string {
	return literalPattern.ReplaceAllString(query, "?")
}

// sqlDisplay prepares statement text for output according to opts
func sqlDisplay(text *string, opts Options) string {
	if text == nil {
		return ""
	}
	out := *text
	if opts.AnonymizeSQL {
		out = AnonymizeSQL(out)
	}
	if !opts.IncludeSQLText {
		out = preview(out, SQLPreviewLength)
	}
	return out
}

// preview truncates s to n runes
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
