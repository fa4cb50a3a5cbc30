package local

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB   uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
	hashAlgorithm        = "argon2id"
)

var errMalformedHash = errors.New("malformed argon2id hash")

// HashConfig sets the argon2id cost parameters for new hashes. Existing hashes
// are verified with the parameters encoded in them.
type HashConfig struct {
	Memory      uint32 `koanf:"memory"`
	Time        uint32 `koanf:"time"`
	Parallelism uint8  `koanf:"parallelism"`
	SaltLength  uint32 `koanf:"salt_length"`
	KeyLength   uint32 `koanf:"key_length"`
}

// DefaultHashConfig is a reasonable interactive-login cost.
func DefaultHashConfig() HashConfig {
	return HashConfig{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c HashConfig) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return errors.New("hash memory must be >= 8192 KB")
	case c.Time < 1:
		return errors.New("hash time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("hash parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return errors.New("hash salt length must be >= 16")
	case c.KeyLength < minKeyLength:
		return errors.New("hash key length must be >= 16")
	}
	return nil
}

// HashPassword returns a PHC-formatted argon2id hash of password.
func HashPassword(cfg HashConfig, password string) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}
	if password == "" {
		return "", errors.New("password is empty")
	}

	salt := make([]byte, cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, cfg.Time, cfg.Memory, cfg.Parallelism, cfg.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		hashAlgorithm, argon2.Version,
		cfg.Memory, cfg.Time, cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// verifyPassword compares password against a PHC hash in constant time.
func verifyPassword(password, encoded string) (bool, error) {
	h, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(key, h.key) == 1, nil
}

type decodedHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decodeHash(encoded string) (*decodedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != hashAlgorithm {
		return nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version", errMalformedHash)
	}

	var h decodedHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.parallelism); err != nil {
		return nil, fmt.Errorf("%w: parameters", errMalformedHash)
	}
	if h.memory < minMemoryKB || h.time < 1 || h.parallelism < 1 {
		return nil, fmt.Errorf("%w: parameters out of range", errMalformedHash)
	}

	var err error
	if h.salt, err = decodeB64(parts[4]); err != nil || len(h.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt", errMalformedHash)
	}
	if h.key, err = decodeB64(parts[5]); err != nil || len(h.key) < int(minKeyLength) {
		return nil, fmt.Errorf("%w: key", errMalformedHash)
	}
	return &h, nil
}

// decodeB64 accepts padded and unpadded standard base64, since hashes from
// other tools use either.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
