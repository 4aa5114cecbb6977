package frontier_test

import (
	"testing"

	"github.com/rohmanhakim/site-archiver/internal/frontier"
)

func TestSet_AddAndContains(t *testing.T) {
	seen := frontier.NewSet[string]()
	if seen.Size() != 0 {
		t.Fatalf("expected empty set, got size %d", seen.Size())
	}

	seen.Add("https://docs.example.org/guide")
	seen.Add("https://docs.example.org/guide/install")

	if !seen.Contains("https://docs.example.org/guide") {
		t.Error("expected guide to be present")
	}
	if seen.Contains("https://docs.example.org/reference") {
		t.Error("reference was never added")
	}

	// Re-adding the same canonical string does not grow the set.
	seen.Add("https://docs.example.org/guide")
	if seen.Size() != 2 {
		t.Errorf("expected size 2 after duplicate add, got %d", seen.Size())
	}
}

func TestSet_Remove(t *testing.T) {
	seen := frontier.NewSet[string]()
	seen.Add("https://docs.example.org/guide")

	// Removing an absent member is a no-op.
	seen.Remove("https://docs.example.org/reference")
	if seen.Size() != 1 {
		t.Errorf("expected size 1, got %d", seen.Size())
	}

	seen.Remove("https://docs.example.org/guide")
	if seen.Size() != 0 {
		t.Errorf("expected empty set after remove, got %d", seen.Size())
	}
	if seen.Contains("https://docs.example.org/guide") {
		t.Error("removed member still reported present")
	}
}

func TestSet_Clear(t *testing.T) {
	seen := frontier.NewSet[string]()
	seen.Add("https://docs.example.org/guide")
	seen.Add("https://docs.example.org/reference")

	seen.Clear()
	if seen.Size() != 0 {
		t.Errorf("expected empty set after clear, got %d", seen.Size())
	}

	// The cleared set stays usable.
	seen.Add("https://docs.example.org/guide")
	if !seen.Contains("https://docs.example.org/guide") {
		t.Error("add after clear did not register")
	}
}
