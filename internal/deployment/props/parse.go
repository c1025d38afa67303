package props

import (
	"sort"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
)

// Parse reads "k1=v1, k2=v2". A segment without '=' continues the previous
// value, so values may themselves contain commas.
func Parse(text string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(text) == "" {
		return out, nil
	}
	last := ""
	for _, segment := range strings.Split(text, ",") {
		k, v, found := strings.Cut(segment, "=")
		if !found {
			if last == "" {
				return nil, domain.Invalid("invalid deployment property %q", strings.TrimSpace(segment))
			}
			out[last] = out[last] + "," + segment
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, domain.Invalid("deployment property without a key: %q", strings.TrimSpace(segment))
		}
		out[k] = strings.TrimSpace(v)
		last = k
	}
	return out, nil
}

// ParseArgs maps "--k=v" and "k=v" arguments to a property map. Arguments
// without '=' are skipped.
func ParseArgs(args []string) map[string]string {
	out := map[string]string{}
	for _, arg := range args {
		k, v, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !found || strings.TrimSpace(k) == "" {
			continue
		}
		out[strings.TrimSpace(k)] = v
	}
	return out
}

// Merge copies maps left to right; later maps win.
func Merge(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// PutIfAbsent sets key only when it is missing.
func PutIfAbsent(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Format renders a map as "k1=v1, k2=v2" in key order.
func Format(m map[string]string) string {
	parts := make([]string, 0, len(m))
	for _, k := range SortedKeys(m) {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ", ")
}
