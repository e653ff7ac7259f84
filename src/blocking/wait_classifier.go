package blocking

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// WaitCategory groups wait types for the summary
type WaitCategory int

// Wait categories
const (
	CategoryOther WaitCategory = iota
	CategoryLock
	CategoryIO
)

func (c WaitCategory) String() string {
	switch c {
	case CategoryLock:
		return "lock"
	case CategoryIO:
		return "io"
	default:
		return "other"
	}
}

// WaitClassifier assigns a category to a wait type by prefix
type WaitClassifier struct {
	LockPrefixes []string `yaml:"lock_prefixes"`
	IOPrefixes   []string `yaml:"io_prefixes"`
}

// DefaultClassifier classifies LCK_ waits as lock waits and page, log and backup I/O waits as I/O waits
func DefaultClassifier() WaitClassifier {
	return WaitClassifier{
		LockPrefixes: []string{"LCK_"},
		IOPrefixes:   []string{"PAGEIOLATCH_", "IO_", "WRITELOG", "ASYNC_IO_COMPLETION", "BACKUPIO"},
	}
}

// LoadClassifier reads prefix overrides from a YAML file. A list missing from the
// file keeps its default.
func LoadClassifier(path string) (WaitClassifier, error) {
	classifier := DefaultClassifier()

	b, err := os.ReadFile(path)
	if err != nil {
		return classifier, fmt.Errorf("failed to read wait categories config: %w", err)
	}

	var overrides WaitClassifier
	if err := yaml.Unmarshal(b, &overrides); err != nil {
		return classifier, fmt.Errorf("failed to parse wait categories config: %w", err)
	}

	if len(overrides.LockPrefixes) > 0 {
		classifier.LockPrefixes = overrides.LockPrefixes
	}
	if len(overrides.IOPrefixes) > 0 {
		classifier.IOPrefixes = overrides.IOPrefixes
	}
	return classifier, nil
}

// Category returns the category of waitType; lock prefixes are checked first
func (c WaitClassifier) Category(waitType string) WaitCategory {
	upper := strings.ToUpper(strings.TrimSpace(waitType))
	if hasAnyPrefix(upper, c.LockPrefixes) {
		return CategoryLock
	}
	if hasAnyPrefix(upper, c.IOPrefixes) {
		return CategoryIO
	}
	return CategoryOther
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}
