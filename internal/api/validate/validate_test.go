package validate

import (
	"strings"
	"testing"

	"github.com/Andrew920528/vibe-30/internal/model"
)

func str(s string) *string { return &s }

func TestID(t *testing.T) {
	if err := ID("bucketId", "3ea7a8b3-93b4-44d1-b18e-f0a5b76ae31c"); err != nil {
		t.Fatalf("expected valid uuid, got %v", err)
	}
	for _, bad := range []string{"", "abc", "3ea7a8b3-93b4-44d1-b18e"} {
		if err := ID("bucketId", bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestBucketName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{"simple", "Rainy day", false},
		{"unicode", "週末の遊び", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"max", strings.Repeat("a", 100), false},
		{"too long", strings.Repeat("a", 101), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := BucketName(tt.input)
			if tt.expectErr && err == nil {
				t.Fatalf("expected error for %q", tt.input)
			}
			if !tt.expectErr && err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.input, err)
			}
		})
	}
}

func TestCreateBucket(t *testing.T) {
	ok := model.CreateBucketRequest{Name: "x", Activities: []model.NewActivity{{Text: "a", Description: str("d")}}}
	if err := CreateBucket(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := model.CreateBucketRequest{Name: "x", Activities: []model.NewActivity{{Text: "a"}, {Text: " "}}}
	err := CreateBucket(bad)
	if err == nil || !strings.Contains(err.Error(), "activities[1]") {
		t.Fatalf("expected indexed activity error, got %v", err)
	}
	long := model.CreateBucketRequest{Name: "x", Activities: []model.NewActivity{{Text: "a", Description: str(strings.Repeat("d", 1001))}}}
	if err := CreateBucket(long); err == nil {
		t.Fatalf("expected description length error")
	}
}

func TestUpdateBucket(t *testing.T) {
	if err := UpdateBucket(model.UpdateBucketRequest{}); err != nil {
		t.Fatalf("empty update is valid: %v", err)
	}
	if err := UpdateBucket(model.UpdateBucketRequest{Name: str("")}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	neg := model.UpdateBucketRequest{Activities: []model.Activity{{Text: "a", Position: -1}}}
	if err := UpdateBucket(neg); err == nil {
		t.Fatalf("expected error for negative position")
	}
}
