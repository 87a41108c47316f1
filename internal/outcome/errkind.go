package outcome

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var friendlyAliases = map[string]string{
	"*url.Error":    "Request URL error",
	"url.Error":     "Request URL error",
	"*net.OpError":  "Network error",
	"net.OpError":   "Network error",
	"*net.DNSError": "DNS lookup error",
	"net.DNSError":  "DNS lookup error",
}

// ErrKindFor returns a short human label for a dispatch failure, suitable
// for the diagnostic breakdown in reports. Returns "" for a nil error.
func ErrKindFor(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "Cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Context deadline exceeded"
	}
	return friendlyErrorName(fmt.Sprintf("%T", err))
}

// ErrKinds counts failure kinds across records. Successes carry an empty
// kind and are skipped.
func ErrKinds(records []Record) map[string]int {
	var kinds map[string]int
	for _, rec := range records {
		if rec.ErrKind == "" {
			continue
		}
		if kinds == nil {
			kinds = make(map[string]int)
		}
		kinds[rec.ErrKind]++
	}
	return kinds
}

func friendlyErrorName(typeName string) string {
	cleaned := strings.TrimSpace(typeName)
	if cleaned == "" {
		return "Unknown error"
	}

	if alias, ok := friendlyAliases[cleaned]; ok {
		return alias
	}

	cleaned = strings.TrimPrefix(cleaned, "*")
	if alias, ok := friendlyAliases[cleaned]; ok {
		return alias
	}
	if idx := strings.LastIndex(cleaned, "/"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}

	pkg := ""
	name := cleaned
	if idx := strings.Index(name, "."); idx != -1 {
		pkg = name[:idx]
		name = name[idx+1:]
	}

	pretty := humanizeTypeName(name)
	if pretty == "" {
		pretty = name
	}

	if pkg != "" && pkg != "main" && pkg != "errors" && pkg != "fmt" {
		return fmt.Sprintf("%s (%s)", pretty, pkg)
	}
	return pretty
}

func humanizeTypeName(name string) string {
	if name == "" {
		return ""
	}

	var words []string
	var current []rune
	runes := []rune(name)

	appendWord := func() {
		if len(current) == 0 {
			return
		}
		word := string(current)
		if isAllUpper(word) {
			words = append(words, word)
		} else {
			words = append(words, capitalize(word))
		}
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)) {
				appendWord()
			} else if unicode.IsDigit(r) && !unicode.IsDigit(prev) {
				appendWord()
			}
		}
		current = append(current, r)
	}
	appendWord()

	return strings.Join(words, " ")
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	runes := []rune(lower)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
