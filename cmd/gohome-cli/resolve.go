package main

import (
	"fmt"
	"sort"
	"strings"
)

var nameReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "_")

func normalizeName(name string) string {
	name = nameReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return strings.Trim(name, "_")
}

// resolveNamedID maps a user supplied label to its ID. An exact match wins;
// otherwise a prefix matching exactly one label is accepted.
func resolveNamedID(kind, input string, options map[string]string) (string, error) {
	needle := normalizeName(input)
	labels := make([]string, 0, len(options))
	for label := range options {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var prefixed []string
	for _, label := range labels {
		norm := normalizeName(label)
		if norm == needle {
			return options[label], nil
		}
		if needle != "" && strings.HasPrefix(norm, needle) {
			prefixed = append(prefixed, label)
		}
	}
	switch len(prefixed) {
	case 1:
		return options[prefixed[0]], nil
	case 0:
		return "", fmt.Errorf("%s %q not found. Available: %s", kind, input, strings.Join(labels, ", "))
	default:
		return "", fmt.Errorf("%s %q is ambiguous: %s", kind, input, strings.Join(prefixed, ", "))
	}
}
