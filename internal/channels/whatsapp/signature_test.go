package whatsapp

import (
	"math/rand"
	"strings"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "test_app_secret"
	body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
	validSig := Sign(secret, body)

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{"valid signature", secret, body, validSig, true},
		{"wrong signature", secret, body, "sha256=" + strings.Repeat("0", 64), false},
		{"empty signature", secret, body, "", false},
		{"empty secret", "", body, validSig, false},
		{"missing prefix", secret, body, strings.TrimPrefix(validSig, "sha256="), false},
		{"other algorithm", secret, body, "sha1=" + strings.TrimPrefix(validSig, "sha256="), false},
		{"prefix only", secret, body, "sha256=", false},
		{"not hex", secret, body, "sha256=" + strings.Repeat("z", 64), false},
		{"truncated digest", secret, body, validSig[:len(validSig)-2], false},
		{"upper case hex", secret, body, "sha256=" + strings.ToUpper(strings.TrimPrefix(validSig, "sha256=")), true},
		{"tampered body", secret, []byte(`tampered`), validSig, false},
		{"reformatted body", secret, []byte(`{"object": "whatsapp_business_account", "entry": []}`), validSig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifySignature(tt.secret, tt.body, tt.signature)
			if got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifySignatureByteFlips(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		body := make([]byte, 1+rng.Intn(256))
		rng.Read(body)
		secret := "secret-" + string(rune('a'+i%26))
		sig := Sign(secret, body)

		if !VerifySignature(secret, body, sig) {
			t.Fatalf("iteration %d: valid signature rejected", i)
		}

		flipped := append([]byte(nil), body...)
		pos := rng.Intn(len(flipped))
		flipped[pos] ^= byte(1 + rng.Intn(255))
		if VerifySignature(secret, flipped, sig) {
			t.Fatalf("iteration %d: flipped byte %d still verified", i, pos)
		}
	}
}
