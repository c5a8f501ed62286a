package mode

import (
	"errors"
	"testing"
)

func TestCredentialsPresent(t *testing.T) {
	tests := []struct {
		name       string
		endpoint   string
		credential string
		want       bool
	}{
		{"both_present", "https://api.example.com", "sk-abc", true},
		{"empty_endpoint", "", "sk-abc", false},
		{"empty_credential", "https://api.example.com", "", false},
		{"literal_undefined", "undefined", "sk-abc", false},
		{"literal_null", "https://api.example.com", "null", false},
		{"whitespace_only", "   ", "sk-abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CredentialsPresent(tt.endpoint, tt.credential); got != tt.want {
				t.Errorf("CredentialsPresent(%q, %q) = %v, want %v",
					tt.endpoint, tt.credential, got, tt.want)
			}
		})
	}
}

func TestTracker_InitMockWithoutCredentials(t *testing.T) {
	tr := NewTracker(nil)

	if tr.Current() != Uninitialized {
		t.Fatalf("new tracker mode = %q, want uninitialized", tr.Current())
	}
	if got := tr.Init("", ""); got != Mock {
		t.Errorf("Init without credentials = %q, want mock", got)
	}
	if tr.IsLive() {
		t.Error("tracker should not be live")
	}
}

func TestTracker_InitLiveThenDemoteIsTerminal(t *testing.T) {
	tr := NewTracker(nil)

	if got := tr.Init("https://api.example.com", "sk-abc"); got != Live {
		t.Fatalf("Init with credentials = %q, want live", got)
	}

	tr.Demote(errors.New("connection refused"))
	if tr.Current() != Mock {
		t.Fatalf("mode after demote = %q, want mock", tr.Current())
	}

	// Re-running Init must not resurrect Live.
	if got := tr.Init("https://api.example.com", "sk-abc"); got != Mock {
		t.Errorf("Init after demote = %q, want mock", got)
	}

	// Demoting twice is a no-op.
	tr.Demote(errors.New("still down"))
	if tr.Current() != Mock {
		t.Errorf("mode after second demote = %q", tr.Current())
	}
}

func TestTracker_InitIdempotent(t *testing.T) {
	tr := NewTracker(nil)
	tr.Init("https://api.example.com", "sk-abc")

	// A second Init with absent credentials must not flip an already-live
	// session to mock.
	if got := tr.Init("", ""); got != Live {
		t.Errorf("second Init = %q, want live", got)
	}
}
