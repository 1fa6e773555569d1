package mailsource

import (
	"fmt"
	"regexp"
)

// Extractor pulls an order id out of a message subject. Patterns with a
// capture group yield group 1; patterns without yield the whole match.
type Extractor struct {
	pattern *regexp.Regexp
}

func NewExtractor(pattern string) (*Extractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid order id pattern %q: %w", pattern, err)
	}
	return &Extractor{pattern: re}, nil
}

// Extract returns the order id and true, or "" and false when the subject
// does not match.
func (e *Extractor) Extract(subject string) (string, bool) {
	if e.pattern.NumSubexp() > 0 {
		m := e.pattern.FindStringSubmatch(subject)
		if len(m) < 2 || m[1] == "" {
			return "", false
		}
		return m[1], true
	}

	m := e.pattern.FindString(subject)
	if m == "" {
		return "", false
	}
	return m, true
}
