package audit

import (
	"regexp"
	"strings"
)

// Mask replaces every sensitive value.
const Mask = "******"

// DefaultSensitiveKeys are matched case-insensitively anywhere in a key.
var DefaultSensitiveKeys = []string{"password", "secret", "key", "token", "credentials", "vcap_services"}

// Redactor masks values whose keys look sensitive. It is pure and applying
// it twice gives the same result as applying it once.
type Redactor struct {
	markers []string
}

func NewRedactor(markers []string) Redactor {
	if len(markers) == 0 {
		markers = DefaultSensitiveKeys
	}
	out := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			out = append(out, m)
		}
	}
	return Redactor{markers: out}
}

func (r Redactor) Sensitive(key string) bool {
	key = strings.ToLower(key)
	for _, m := range r.markers {
		if strings.Contains(key, m) {
			return true
		}
	}
	return false
}

// Value returns the masked value for a sensitive key, value otherwise.
func (r Redactor) Value(key, value string) string {
	if r.Sensitive(key) {
		return Mask
	}
	return value
}

// Properties returns a redacted copy of in.
func (r Redactor) Properties(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = r.Value(k, v)
	}
	return out
}

// Arguments redacts "--key=value" and "key=value" arguments, keeping order.
// Arguments without '=' pass through.
func (r Redactor) Arguments(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		k, _, found := strings.Cut(arg, "=")
		if !found || !r.Sensitive(strings.TrimLeft(k, "-")) {
			out = append(out, arg)
			continue
		}
		out = append(out, k+"="+Mask)
	}
	return out
}

var dslOption = regexp.MustCompile(`--([A-Za-z0-9_.\-*\[\]$]+)=('(?:[^']|'')*'|"(?:[^"]|"")*"|[^\s|&<>]+)`)

// DSL masks inline option values in stream or task DSL text.
func (r Redactor) DSL(text string) string {
	return dslOption.ReplaceAllStringFunc(text, func(match string) string {
		parts := dslOption.FindStringSubmatch(match)
		if len(parts) != 3 || !r.Sensitive(parts[1]) {
			return match
		}
		return "--" + parts[1] + "=" + Mask
	})
}
