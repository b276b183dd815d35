package logger

import (
	"strings"
	"testing"
)

func TestRedactBearerToken(t *testing.T) {
	in := "request failed: Bearer eyJhbGciOiJIUzI1NiJ9.payload.sig rejected"
	out := Redact(in)
	if strings.Contains(out, "eyJhbGciOiJIUzI1NiJ9") {
		t.Fatalf("bearer token leaked: %s", out)
	}
}

func TestRedactKeyValueSecrets(t *testing.T) {
	cases := []string{
		"dial failed api_key=sk_live_abc123 retrying",
		`config token: "abc123secret"`,
		"password=hunter2 rejected",
	}
	for _, in := range cases {
		out := Redact(in)
		if strings.Contains(out, "sk_live_abc123") || strings.Contains(out, "hunter2") || strings.Contains(out, "abc123secret") {
			t.Fatalf("secret leaked in %q -> %q", in, out)
		}
	}
}

func TestRedactHomePaths(t *testing.T) {
	out := Redact("open /home/alice/.config/creds.yaml failed")
	if strings.Contains(out, "alice") {
		t.Fatalf("user path leaked: %s", out)
	}
}

func TestRedactLongOpaqueToken(t *testing.T) {
	out := Redact("ws connect x-auth 0123456789abcdef0123456789abcdef failed")
	if strings.Contains(out, "0123456789abcdef0123456789abcdef") {
		t.Fatalf("opaque token leaked: %s", out)
	}
}

func TestRedactKeepsPlainMessages(t *testing.T) {
	in := "connection refused to broker peer"
	if out := Redact(in); out != in {
		t.Fatalf("plain message mangled: %q", out)
	}
}
