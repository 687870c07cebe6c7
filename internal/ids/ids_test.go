package ids

import (
	"sort"
	"testing"
)

func TestNewLengthAndValidity(t *testing.T) {
	t.Parallel()

	id := New()
	if len(id) != 26 {
		t.Fatalf("expected 26-character id, got %d (%q)", len(id), id)
	}
	if err := Validate(id); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestNewIsSortableByCreation(t *testing.T) {
	t.Parallel()

	got := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		got = append(got, New())
	}

	if !sort.StringsAreSorted(got) {
		t.Fatal("ids are not lexicographically ordered by creation")
	}

	seen := make(map[string]bool, len(got))
	for _, id := range got {
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "not-a-ulid", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		if err := Validate(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}
