package deps

import (
	"path/filepath"
	"strings"
)

// TestFiles maps the closure's files to their existing spec/ and test/
// counterparts: app/models/user.rb -> spec/models/user_spec.rb,
// test/models/user_test.rb; views map to their view specs.
func (r *Resolver) TestFiles(closure *Closure) []string {
	var out []string
	add := func(rel string) {
		if file := r.existing(filepath.FromSlash(rel)); file != "" {
			out = append(out, file)
		}
	}

	for _, file := range closure.Files() {
		rest, ok := strings.CutPrefix(file, "app/")
		if !ok {
			continue
		}

		if strings.HasPrefix(rest, "views/") {
			// View specs reference the full template name:
			// spec/views/users/index.html.erb_spec.rb
			add("spec/" + rest + "_spec.rb")
			continue
		}

		base := strings.TrimSuffix(rest, ".rb")
		add("spec/" + base + "_spec.rb")
		add("test/" + base + "_test.rb")
	}
	return sortedUnique(out)
}
