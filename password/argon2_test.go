package password

import (
	"errors"
	"strings"
	"testing"
)

// fastArgon2Config keeps test runs quick while staying above the package floor.
func fastArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      minMemoryKB,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestArgon2(t *testing.T, cfg Argon2Config) *Argon2 {
	t.Helper()
	hasher, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return hasher
}

func TestArgon2HashAndVerify(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	if Detect(hash) != AlgorithmArgon2id {
		t.Fatalf("Detect(%q) = %q", hash, Detect(hash))
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil || !ok {
		t.Fatalf("Verify = %v, %v; want true, nil", ok, err)
	}

	ok, err = hasher.Verify("p@ssw0rd-ascii", hash)
	if err != nil || ok {
		t.Fatalf("Verify(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestArgon2SaltIsRandom(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())

	a, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestArgon2VerifyPaddedEncoding(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())

	hash, err := hasher.Hash("padded-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	parts := strings.Split(hash, "$")
	salt, _ := decodeSegment(parts[4])
	key, _ := decodeSegment(parts[5])
	parts[4] = padded(salt)
	parts[5] = padded(key)

	ok, err := hasher.Verify("padded-password", strings.Join(parts, "$"))
	if err != nil || !ok {
		t.Fatalf("Verify(padded) = %v, %v", ok, err)
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	weak := newTestArgon2(t, fastArgon2Config())
	hash, err := weak.Hash("upgrade-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := fastArgon2Config()
	stronger.Time = 2
	needs, err := newTestArgon2(t, stronger).NeedsUpgrade(hash)
	if err != nil || !needs {
		t.Fatalf("NeedsUpgrade(stronger) = %v, %v; want true", needs, err)
	}

	needs, err = weak.NeedsUpgrade(hash)
	if err != nil || needs {
		t.Fatalf("NeedsUpgrade(same) = %v, %v; want false", needs, err)
	}
}

func TestArgon2MalformedHashes(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())

	hash, err := hasher.Hash("malformed-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	cases := map[string]struct {
		hash string
		want error
	}{
		"not phc":      {"not-a-phc-hash", ErrMalformedHash},
		"wrong alg":    {strings.Replace(hash, "$argon2id$", "$argon2i$", 1), ErrUnsupportedHash},
		"wrong ver":    {strings.Replace(hash, "$v=19$", "$v=18$", 1), ErrUnsupportedHash},
		"low memory":   {strings.Replace(hash, "m=8192", "m=1024", 1), ErrMalformedHash},
		"extra param":  {strings.Replace(hash, ",p=1", ",p=1,x=2", 1), ErrMalformedHash},
		"unknown key":  {strings.Replace(hash, "p=1", "q=1", 1), ErrMalformedHash},
		"bad salt b64": {strings.Replace(hash, "$"+strings.Split(hash, "$")[4]+"$", "$!!!!$", 1), ErrMalformedHash},
	}
	for name, tc := range cases {
		if _, err := hasher.Verify("malformed-test", tc.hash); !errors.Is(err, tc.want) {
			t.Fatalf("%s: Verify err = %v, want %v", name, err, tc.want)
		}
	}
}

func TestArgon2PasswordBounds(t *testing.T) {
	cfg := fastArgon2Config()
	cfg.MaxPasswordBytes = 64
	hasher := newTestArgon2(t, cfg)

	if _, err := hasher.Hash(""); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("Hash(empty) err = %v", err)
	}
	if _, err := hasher.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("Hash(short) err = %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Hash(long) err = %v", err)
	}

	exact := strings.Repeat("b", 64)
	hash, err := hasher.Hash(exact)
	if err != nil {
		t.Fatalf("Hash(exact) error: %v", err)
	}
	if _, err := hasher.Verify(strings.Repeat("c", 65), hash); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Verify(long) err = %v", err)
	}
}

func TestArgon2DefaultMaxPasswordBytes(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())

	if _, err := hasher.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected password > %d bytes to be rejected, got %v", DefaultMaxPasswordBytes, err)
	}
	if _, err := hasher.Hash(strings.Repeat("e", DefaultMaxPasswordBytes)); err != nil {
		t.Fatalf("expected password of %d bytes to be accepted: %v", DefaultMaxPasswordBytes, err)
	}
}

func TestArgon2ConfigValidate(t *testing.T) {
	if err := DefaultArgon2Config().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []func(*Argon2Config){
		func(c *Argon2Config) { c.Memory = 1024 },
		func(c *Argon2Config) { c.Time = 0 },
		func(c *Argon2Config) { c.Parallelism = 0 },
		func(c *Argon2Config) { c.SaltLength = 8 },
		func(c *Argon2Config) { c.KeyLength = 8 },
		func(c *Argon2Config) { c.MaxPasswordBytes = 4 },
		func(c *Argon2Config) { c.MinPasswordBytes = -1 },
	}
	for i, mutate := range bad {
		cfg := fastArgon2Config()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("case %d: NewArgon2 err = %v, want ErrInvalidConfig", i, err)
		}
	}
}

func BenchmarkArgon2Verify(b *testing.B) {
	hasher, err := NewArgon2(fastArgon2Config())
	if err != nil {
		b.Fatalf("NewArgon2 error: %v", err)
	}
	hash, err := hasher.Hash("benchmark-password")
	if err != nil {
		b.Fatalf("Hash error: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = hasher.Verify("benchmark-password", hash)
	}
}
