package constants

import "testing"

func TestDetachedLogPath(t *testing.T) {
	got := DetachedLogPath("a1b2c3d4")
	want := "/tmp/vmlink_a1b2c3d4.log"
	if got != want {
		t.Errorf("DetachedLogPath() = %q, want %q", got, want)
	}
}

func TestDetachedExitCodePath(t *testing.T) {
	got := DetachedExitCodePath("/tmp/vmlink_a1b2c3d4.log")
	want := "/tmp/vmlink_a1b2c3d4.log.exit"
	if got != want {
		t.Errorf("DetachedExitCodePath() = %q, want %q", got, want)
	}
}
