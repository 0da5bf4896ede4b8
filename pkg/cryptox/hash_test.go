package cryptox_test

import (
	"strings"
	"testing"

	"github.com/klubhub/klubhub/pkg/cryptox"
)

// testParams keeps test runs fast; production costs are exercised via the
// parameter constructors below.
func testParams() cryptox.Params {
	return cryptox.Params{Memory: 16 * 1024, Time: 1, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func TestHasher_RoundTrip(t *testing.T) {
	h := cryptox.NewHasher(testParams())

	encoded, err := h.Hash("Passw0rd!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("expected PHC argon2id encoding, got %q", encoded)
	}
	if !h.Verify(encoded, "Passw0rd!") {
		t.Fatal("Verify rejected the hashed secret")
	}
	if h.Verify(encoded, "Passw0rd?") {
		t.Fatal("Verify accepted a different secret")
	}
}

func TestHasher_SameSecretDifferentHashes(t *testing.T) {
	h := cryptox.NewHasher(testParams())

	a, _ := h.Hash("314159")
	b, _ := h.Hash("314159")
	if a == b {
		t.Fatal("two hashes of the same secret must differ (random salt)")
	}
	if !h.Verify(a, "314159") || !h.Verify(b, "314159") {
		t.Fatal("both hashes must verify")
	}
}

func TestHasher_VerifyMalformedHashIsFalse(t *testing.T) {
	h := cryptox.NewHasher(testParams())

	for _, bad := range []string{
		"",
		"not-a-hash",
		"$bcrypt$v=19$m=16,t=1,p=1$AAAA$BBBB",
		"$argon2id$v=19$m=16,t=1$AAAA$BBBB", // missing parallelism
		"$argon2id$v=19$m=16,t=1,p=1$!!!$BBBB",
	} {
		if h.Verify(bad, "secret") {
			t.Fatalf("Verify accepted malformed hash %q", bad)
		}
	}
}

func TestParamConstructors(t *testing.T) {
	pw := cryptox.PasswordParams()
	if pw.Memory != 64*1024 || pw.Time != 3 || pw.Parallelism != 4 || pw.KeyLength != 32 {
		t.Fatalf("unexpected password params: %+v", pw)
	}
	pin := cryptox.PINParams()
	if pin.Time != 5 {
		t.Fatalf("PIN time cost must exceed password time cost, got %d", pin.Time)
	}
}
