// ABOUTME: SubjectCode is the validated exchange-qualified identifier for a listed
// ABOUTME: company (six digits plus .SH or .SZ suffix), used across both report shapes.
package report

import (
	"fmt"
	"strings"
)

// SubjectCode is an exchange-qualified security code such as "600519.SH".
type SubjectCode string

// ParseSubjectCode validates and canonicalizes a subject code. The accepted
// form is six digits, a dot, and an SH or SZ exchange suffix.
func ParseSubjectCode(s string) (SubjectCode, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != 9 || code[6] != '.' {
		return "", fmt.Errorf("invalid subject code %q: want NNNNNN.SH or NNNNNN.SZ", s)
	}
	for i := 0; i < 6; i++ {
		if code[i] < '0' || code[i] > '9' {
			return "", fmt.Errorf("invalid subject code %q: non-digit in security number", s)
		}
	}
	switch code[7:] {
	case "SH", "SZ":
	default:
		return "", fmt.Errorf("invalid subject code %q: unknown exchange suffix", s)
	}
	return SubjectCode(code), nil
}

func (c SubjectCode) String() string { return string(c) }
