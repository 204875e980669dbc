package runtime

import (
	"strings"
	"testing"

	"github.com/containerd/platforms"
)

func TestImageTag(t *testing.T) {
	tag := imageTag("images/rust-1.61.tar")

	if !strings.HasPrefix(tag, "base/") || !strings.HasSuffix(tag, ":latest") {
		t.Fatalf("tag = %q, want base/<digest>:latest", tag)
	}

	// Deterministic per path, distinct across paths.
	if tag != imageTag("images/rust-1.61.tar") {
		t.Error("same path produced different tags")
	}
	if tag == imageTag("images/rust-1.60.tar") {
		t.Error("different paths produced the same tag")
	}

	// Arbitrary path characters never leak into the reference.
	odd := imageTag("/tmp/some dir/With:Colons@v1.tar")
	if strings.ContainsAny(strings.TrimPrefix(odd, "base/"), " @") {
		t.Errorf("tag %q contains unsanitized path characters", odd)
	}
}

func TestHostPlatform(t *testing.T) {
	p, err := platforms.Parse(hostPlatform())
	if err != nil {
		t.Fatalf("hostPlatform() = %q is not a valid platform: %v", hostPlatform(), err)
	}
	if p.OS != "linux" {
		t.Errorf("platform OS = %q, want linux", p.OS)
	}
}
