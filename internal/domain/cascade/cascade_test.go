package cascade

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"deploy now", "deploy now"},
		{"  deploy   now  ", "deploy now"},
		{"deploy\t\nnow", "deploy now"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("deploy now", "alice")
	b := Fingerprint("deploy now", "alice")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%s)", len(a), a)
	}
	if a != strings.ToLower(a) {
		t.Fatalf("expected lowercase hex, got %s", a)
	}
}

func TestFingerprintIgnoresWhitespaceVariants(t *testing.T) {
	a := Fingerprint("deploy   now", "alice")
	b := Fingerprint("  deploy\tnow ", "alice")
	if a != b {
		t.Fatal("whitespace variants must share a fingerprint")
	}
}

func TestFingerprintVariesByRecipient(t *testing.T) {
	if Fingerprint("deploy now", "alice") == Fingerprint("deploy now", "bob") {
		t.Fatal("same content to different recipients must differ")
	}
}

func TestFingerprintVariesByContent(t *testing.T) {
	if Fingerprint("deploy now", "alice") == Fingerprint("deploy later", "alice") {
		t.Fatal("different content must differ")
	}
}

func TestFingerprintSeparatorNotAmbiguous(t *testing.T) {
	// Content ending where the recipient begins must not collide with a
	// shifted split of the same bytes.
	if Fingerprint("ab", "c") == Fingerprint("a", "bc") {
		t.Fatal("content/recipient split must be unambiguous")
	}
}

func TestMessageValidate(t *testing.T) {
	empty := Message{}
	if err := empty.Validate(); err == nil {
		t.Fatal("expected error for empty message")
	}

	bad := Message{Teams: map[string]string{"backend": ""}}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for empty team content")
	}

	ok := Message{
		Broadcast: "hello",
		Teams:     map[string]string{"backend": "standup"},
		Agents:    map[string]string{"alice": "ping"},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
}

func TestMessageEmpty(t *testing.T) {
	if !(&Message{}).Empty() {
		t.Fatal("zero message must be empty")
	}
	if (&Message{Broadcast: "x"}).Empty() {
		t.Fatal("broadcast message must not be empty")
	}
}
