// Package naming derives output file names from decoded barcode values.
package naming

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/spherical/pdf2jpeg/internal/domain"
)

// Extension of every page image written.
const Extension = ".jpeg"

// Policy decides what happens when a name repeats within a run.
type Policy string

const (
	// Overwrite reuses the name; the later page replaces the earlier file.
	Overwrite Policy = "overwrite"
	// Suffix appends _2, _3, ... to repeated names.
	Suffix Policy = "suffix"
)

// ParsePolicy converts a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case Overwrite, Suffix:
		return Policy(s), nil
	default:
		return "", domain.ConfigError(fmt.Sprintf("unknown collision policy %q", s), nil)
	}
}

// Namer hands out names for one save run.
type Namer struct {
	policy Policy

	mu     sync.Mutex
	taken  map[string]bool // final names handed out
	suffix map[string]int  // last suffix tried per base
}

// New creates a Namer for a single run.
func New(policy Policy) *Namer {
	return &Namer{
		policy: policy,
		taken:  make(map[string]bool),
		suffix: make(map[string]int),
	}
}

// Name returns "<value>.jpeg" for a decoded page and "page_<index+1>.jpeg" otherwise.
// The second return value reports a collision with an earlier name in the run.
// Under Suffix every returned name is unique within the run, including against
// values that already look like "<value>_<n>".
func (n *Namer) Name(result *domain.DecodeResult, index int) (string, bool) {
	base := Base(result, index)

	n.mu.Lock()
	defer n.mu.Unlock()

	name := base + Extension
	if !n.taken[name] {
		n.taken[name] = true
		return name, false
	}
	if n.policy != Suffix {
		return name, true
	}

	next := n.suffix[base]
	if next < 2 {
		next = 2
	}
	for {
		name = fmt.Sprintf("%s_%d%s", base, next, Extension)
		if !n.taken[name] {
			break
		}
		next++
	}
	n.suffix[base] = next + 1
	n.taken[name] = true
	return name, true
}

// Base returns the name without extension or collision handling.
func Base(result *domain.DecodeResult, index int) string {
	if result != nil {
		if value := Sanitize(result.Text); value != "" {
			return value
		}
	}
	return fmt.Sprintf("page_%d", index+1)
}

// Sanitize keeps a decoded value inside the destination: path separators and
// control characters become underscores, and dot-only values are dropped.
func Sanitize(value string) string {
	value = strings.TrimSpace(value)
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == 0:
			return '_'
		case unicode.IsControl(r):
			return '_'
		}
		return r
	}, value)

	if strings.Trim(cleaned, ".") == "" {
		return ""
	}
	return cleaned
}
