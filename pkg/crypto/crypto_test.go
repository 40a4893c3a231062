package crypto

import (
	"strings"
	"testing"
)

const testKey = "8d969eef6ecad3c29a3a629280e686cf0c3f5d5a86aff3ca12020c923adc6c92"

func TestFieldCipher_RoundTrip(t *testing.T) {
	fc, err := NewFieldCipher(testKey)
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}

	for _, plain := range []string{"", "Jansen", "a'; DROP TABLE users;--", "0612345678"} {
		enc, err := fc.EncryptField(plain)
		if err != nil {
			t.Fatalf("EncryptField(%q): %v", plain, err)
		}
		if enc == plain && plain != "" {
			t.Fatalf("ciphertext equals plaintext")
		}
		dec, err := fc.DecryptField(enc)
		if err != nil {
			t.Fatalf("DecryptField: %v", err)
		}
		if dec != plain {
			t.Fatalf("round trip mismatch: got %q want %q", dec, plain)
		}
	}
}

func TestFieldCipher_NonDeterministic(t *testing.T) {
	fc, err := NewFieldCipher(testKey)
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	a, _ := fc.EncryptField("same value")
	b, _ := fc.EncryptField("same value")
	if a == b {
		t.Fatalf("expected distinct ciphertexts for identical plaintexts")
	}
}

func TestFieldCipher_RejectsBadKey(t *testing.T) {
	if _, err := NewFieldCipher("not-hex"); err == nil {
		t.Fatalf("expected error for non-hex key")
	}
	if _, err := NewFieldCipher("abcd"); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestFieldCipher_RejectsTamperedCiphertext(t *testing.T) {
	fc, err := NewFieldCipher(testKey)
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	enc, _ := fc.EncryptField("secret")
	if _, err := fc.DecryptField("!!" + enc); err == nil {
		t.Fatalf("expected error for corrupted ciphertext")
	}
	if _, err := fc.DecryptField(""); err == nil {
		t.Fatalf("expected error for empty ciphertext")
	}
}

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("Str0ng_Passw0rd!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash prefix: %q", hash)
	}

	ok, err := VerifyPassword("Str0ng_Passw0rd!", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}

	ok, err = VerifyPassword("wrong", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	a, _ := HashPassword("same")
	b, _ := HashPassword("same")
	if a == b {
		t.Fatalf("expected unique salts per hash")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, bad := range []string{"", "plain", "$argon2id$v=19$bogus", "$md5$x$y$z$w$v"} {
		if _, err := VerifyPassword("pw", bad); err == nil {
			t.Fatalf("expected ErrHashFormat for %q", bad)
		}
	}
}

func TestLookupDigest_DeterministicPerKey(t *testing.T) {
	fc, err := NewFieldCipher(testKey)
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	if fc.LookupDigest("maria") != fc.LookupDigest("maria") {
		t.Fatalf("digest must be deterministic for one key")
	}
	if fc.LookupDigest("maria") == fc.LookupDigest("marian") {
		t.Fatalf("different values must digest differently")
	}

	other, err := NewFieldCipher("6368616e676520746869732070617373776f726420746f206120736563726574")
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	if fc.LookupDigest("maria") == other.LookupDigest("maria") {
		t.Fatalf("digest must depend on the key")
	}
}
