package evidence

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"contract.pdf", "contract.pdf"},
		{"my exhibit A.pdf", "my-exhibit-A.pdf"},
		{"../../etc/passwd", "passwd"},
		{"weird\x00name?.txt", "weirdname.txt"},
		{"////", "document"},
		{"", "document"},
	}
	for _, c := range cases {
		if got := SanitizeFilename(c.in); got != c.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestObjectNameScopedToCaseAndSide(t *testing.T) {
	name := ObjectName("CASE_1700000000000_abcd", "sideA", "exhibit.pdf")
	if !strings.HasPrefix(name, "CASE_1700000000000_abcd/sideA/") {
		t.Fatalf("object name %q not scoped to case and side", name)
	}
	if !strings.HasSuffix(name, "_exhibit.pdf") {
		t.Fatalf("object name %q does not keep the sanitized filename", name)
	}

	// Repeated uploads of the same filename must not collide.
	other := ObjectName("CASE_1700000000000_abcd", "sideA", "exhibit.pdf")
	if name == other {
		t.Fatalf("expected distinct object names, got %q twice", name)
	}
}
