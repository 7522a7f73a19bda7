package launch

import (
	"sort"
	"strings"
)

// mergeEnv layers environment maps over a base environment in "NAME=value"
// form. Later layers take precedence over earlier ones, and every layer takes
// precedence over the base. Layered variables are appended in sorted order so
// the result is deterministic.
func mergeEnv(base []string, layers ...map[string]string) []string {
	merged := make(map[string]string, len(base))
	order := make([]string, 0, len(base))
	for _, kv := range base {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, seen := merged[name]; !seen {
			order = append(order, name)
		}
		merged[name] = value
	}

	var added []string
	for _, layer := range layers {
		for name, value := range layer {
			if _, seen := merged[name]; !seen {
				added = append(added, name)
			}
			merged[name] = value
		}
	}
	sort.Strings(added)
	order = append(order, added...)

	out := make([]string, 0, len(order))
	for _, name := range order {
		out = append(out, name+"="+merged[name])
	}
	return out
}
