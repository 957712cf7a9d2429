package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/hollevik/vellum/internal/apperr"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_KeyLength(t *testing.T) {
	cases := []struct {
		name string
		key  string
		ok   bool
	}{
		{"valid", testKey, true},
		{"empty", "", false},
		{"short", "abcd", false},
		{"long", testKey + "00", false},
		{"not hex", strings.Repeat("zz", 32), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := New(c.key)
			if c.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !c.ok {
				var ce *apperr.ConfigError
				if !errors.As(err, &ce) {
					t.Fatalf("expected ConfigError, got %v", err)
				}
			}
		})
	}
}

func TestRoundTrip_String(t *testing.T) {
	c := testCodec(t)
	plain := "It was a dark and stormy night."
	enc, err := c.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != plain {
		t.Errorf("round trip = %q, want %q", got, plain)
	}
}

func TestRoundTrip_EmptyString(t *testing.T) {
	c := testCodec(t)
	enc, err := c.Encrypt("")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	// Sealing an empty string yields an empty ciphertext part (iv:tag:).
	if !strings.HasSuffix(enc, ":") {
		t.Fatalf("record = %q, want empty trailing ciphertext part", enc)
	}
	if !LooksEncrypted(enc) {
		t.Error("empty-plaintext record does not pass LooksEncrypted")
	}
	got, err := c.DecryptString(enc)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if got != "" {
		t.Errorf("round trip = %q, want empty string", got)
	}
}

func TestRoundTrip_Object(t *testing.T) {
	c := testCodec(t)
	doc := map[string]any{
		"kind": "doc",
		"children": []any{
			map[string]any{"kind": "text", "text": "Hello"},
		},
	}
	enc, err := c.Encrypt(doc)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", got)
	}
	if m["kind"] != "doc" {
		t.Errorf("kind = %v", m["kind"])
	}
	children, ok := m["children"].([]any)
	if !ok || len(children) != 1 {
		t.Fatalf("children = %v", m["children"])
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	c := testCodec(t)
	a, err := c.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := c.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical output")
	}
}

func TestEncrypt_RecordGrammar(t *testing.T) {
	c := testCodec(t)
	enc, err := c.Encrypt("abc")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	parts := strings.Split(enc, ":")
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
	if len(parts[0]) != 32 {
		t.Errorf("iv hex length = %d, want 32", len(parts[0]))
	}
	if len(parts[1]) != 32 {
		t.Errorf("tag hex length = %d, want 32", len(parts[1]))
	}
	if !LooksEncrypted(enc) {
		t.Error("own output does not pass LooksEncrypted")
	}
}

func TestDecrypt_Malformed(t *testing.T) {
	c := testCodec(t)
	for _, in := range []string{"", "abc", "aa:bb", "aa:bb:cc:dd", "nothex:nothex:nothex"} {
		if _, err := c.Decrypt(in); !errors.Is(err, apperr.ErrMalformedRecord) {
			t.Errorf("Decrypt(%q) error = %v, want ErrMalformedRecord", in, err)
		}
	}
}

func TestDecrypt_TamperDetected(t *testing.T) {
	c := testCodec(t)
	enc, err := c.Encrypt("the secret chapter")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	flip := func(s string, i int) string {
		b := []byte(s)
		if b[i] == '0' {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
		return string(b)
	}

	parts := strings.Split(enc, ":")

	// Flip one hex char in the tag.
	tampered := parts[0] + ":" + flip(parts[1], 3) + ":" + parts[2]
	if _, err := c.Decrypt(tampered); !errors.Is(err, apperr.ErrAuthenticationFailed) {
		t.Errorf("tag tamper error = %v, want ErrAuthenticationFailed", err)
	}

	// Flip one hex char in the ciphertext.
	tampered = parts[0] + ":" + parts[1] + ":" + flip(parts[2], 0)
	if _, err := c.Decrypt(tampered); !errors.Is(err, apperr.ErrAuthenticationFailed) {
		t.Errorf("ciphertext tamper error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	c := testCodec(t)
	other, err := New(strings.Repeat("ef", 32))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	enc, err := c.Encrypt("content")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := other.Decrypt(enc); !errors.Is(err, apperr.ErrAuthenticationFailed) {
		t.Errorf("wrong key error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestDecryptString_TreeContent(t *testing.T) {
	c := testCodec(t)
	tree := `{"kind":"doc","children":[{"kind":"text","text":"hi"}]}`
	enc, err := c.Encrypt(tree)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := c.DecryptString(enc)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if !strings.Contains(got, `"kind"`) || !strings.Contains(got, "hi") {
		t.Errorf("DecryptString = %q", got)
	}
}

func TestLooksEncrypted(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want bool
	}{
		{"non-string", 42, false},
		{"plain text", "hello world", false},
		{"two parts", "aabb:ccdd", false},
		{"wrong part lengths", "aa:bb:cc", false},
		{"non-hex part", strings.Repeat("a", 32) + ":" + strings.Repeat("g", 32) + ":aa", false},
		{"valid shape", strings.Repeat("ab", 16) + ":" + strings.Repeat("cd", 16) + ":" + "deadbeef", true},
		{"empty ciphertext part", strings.Repeat("ab", 16) + ":" + strings.Repeat("cd", 16) + ":", true},
		{"empty iv part", ":" + strings.Repeat("cd", 16) + ":aa", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := LooksEncrypted(c.in); got != c.want {
				t.Errorf("LooksEncrypted(%v) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}
