package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern, subject string
		want             bool
	}{
		{"feedwatch.users", "feedwatch.users", true},
		{"feedwatch.users", "feedwatch.posts", false},
		{"feedwatch.users", "feedwatch.users.x", false},
		{"feedwatch.*", "feedwatch.users", true},
		{"feedwatch.*", "feedwatch.users.x", false},
		{"*.users", "feedwatch.users", true},
		{"feedwatch.>", "feedwatch.users", true},
		{"feedwatch.>", "feedwatch.users.x", true},
		{"feedwatch.>", "feedwatch", false},
		{">", "feedwatch", true},
		{"", "feedwatch", false},
		{"feedwatch", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchSubject(tt.pattern, tt.subject), "%s ~ %s", tt.pattern, tt.subject)
	}
}
