package idgen

import (
	"regexp"
	"strings"
	"testing"
)

var randomPart = regexp.MustCompile(`^[a-z0-9]{12}$`)

func TestExternalID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id, err := ExternalID()
		if err != nil {
			t.Fatalf("ExternalID() error on iteration %d: %v", i, err)
		}
		if !randomPart.MatchString(id) {
			t.Fatalf("ExternalID() = %q, want %d chars from %q", id, Length, Alphabet)
		}
	}
}

func TestEntranceID(t *testing.T) {
	id, err := EntranceID()
	if err != nil {
		t.Fatalf("EntranceID() error: %v", err)
	}
	if !strings.HasPrefix(id, EntrancePrefix) {
		t.Fatalf("EntranceID() = %q, want prefix %q", id, EntrancePrefix)
	}
	if rest := strings.TrimPrefix(id, EntrancePrefix); !randomPart.MatchString(rest) {
		t.Errorf("EntranceID() random part = %q", rest)
	}
}

func TestWithPrefix(t *testing.T) {
	tests := []struct {
		prefix string
	}{
		{""},
		{"step-"},
		{"a"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			id, err := WithPrefix(tt.prefix)
			if err != nil {
				t.Fatalf("WithPrefix(%q) error: %v", tt.prefix, err)
			}
			if len(id) != len(tt.prefix)+Length {
				t.Errorf("WithPrefix(%q) = %q, length %d", tt.prefix, id, len(id))
			}
			if !strings.HasPrefix(id, tt.prefix) {
				t.Errorf("WithPrefix(%q) = %q, missing prefix", tt.prefix, id)
			}
		})
	}
}

func TestExternalID_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := ExternalID()
		if err != nil {
			t.Fatalf("ExternalID() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}
