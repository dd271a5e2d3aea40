package memory

import "strings"

// matchSubject reports whether subject matches a NATS subject pattern, where
// "*" matches one token and a trailing ">" matches one or more.
func matchSubject(pattern, subject string) bool {
	if pattern == "" || subject == "" {
		return false
	}

	want := strings.Split(pattern, ".")
	got := strings.Split(subject, ".")

	for i, p := range want {
		if p == ">" {
			return i < len(got)
		}
		if i >= len(got) {
			return false
		}
		if p != "*" && p != got[i] {
			return false
		}
	}
	return len(want) == len(got)
}
