package cloud

import (
	"strings"
	"testing"
)

func TestValidBucketName(t *testing.T) {
	valid := []string{"abc", "my-bucket", "my.bucket.2024", "a0b", "x-y.z-1"}
	for _, n := range valid {
		if !ValidBucketName(n) {
			t.Fatalf("expected %q to be valid", n)
		}
	}
	invalid := []string{
		"ab",                 // too short
		"Ab-cd",              // uppercase
		"-bucket",            // leading separator
		"bucket-",            // trailing separator
		".bucket",            // leading dot
		"bucket.",            // trailing dot
		"my..bucket",         // consecutive dots
		"my_bucket",          // underscore
		"",                   // empty
		strings.Repeat("a", 64), // too long
	}
	for _, n := range invalid {
		if ValidBucketName(n) {
			t.Fatalf("expected %q to be invalid", n)
		}
	}
}

func TestValidResourceName(t *testing.T) {
	valid := []string{"a", "web-1", "my-instance", "z9"}
	for _, n := range valid {
		if !ValidResourceName(n) {
			t.Fatalf("expected %q to be valid", n)
		}
	}
	invalid := []string{"", "1abc", "-abc", "abc-", "Abc", "my_instance", "i-0abc123"}
	for _, n := range invalid {
		if ValidResourceName(n) {
			t.Fatalf("expected %q to be invalid", n)
		}
	}
}

func TestCodeOf(t *testing.T) {
	if c := CodeOf(E(CodeNotFound, "x")); c != CodeNotFound {
		t.Fatalf("expected not_found, got %s", c)
	}
	// non-taxonomy errors degrade to provider_unavailable
	if c := CodeOf(errAny{}); c != CodeProviderUnavailable {
		t.Fatalf("expected provider_unavailable, got %s", c)
	}
}

type errAny struct{}

func (errAny) Error() string { return "boom" }
