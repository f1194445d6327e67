package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingularize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"users", "user"},
		{"posts", "post"},
		{"companies", "company"},
		{"categories", "category"},
		{"addresses", "address"},
		{"boxes", "box"},
		{"branches", "branch"},
		{"wishes", "wish"},
		{"leaves", "leaf"},
		{"status", "status"},
		{"address", "address"},
		{"sheep", "sheep"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Singularize(tt.in))
		})
	}
}

func TestUnderscore(t *testing.T) {
	tests := []struct{ in, want string }{
		{"User", "user"},
		{"UserProfile", "user_profile"},
		{"Admin::UserProfile", "admin/user_profile"},
		{"APIKey", "api_key"},
		{"HTMLParser", "html_parser"},
		{"already_snake", "already_snake"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Underscore(tt.in))
		})
	}
}
