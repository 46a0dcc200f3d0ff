package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"

	"github.com/reuf/lending-system/internal/core/domain"
)

const (
	// DefaultPasswordIterations matches the PBKDF2 cost of existing stored hashes.
	DefaultPasswordIterations = 260000

	hashMethod  = "pbkdf2:sha256"
	saltLength  = 16
	saltCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// CredentialStore hashes and verifies user passwords.
//
// Hashes are encoded as "pbkdf2:sha256:<iterations>$<salt>$<hex digest>" so
// that previously stored hashes keep verifying.
type CredentialStore struct {
	iterations int
	random     io.Reader
}

// NewCredentialStore returns a store hashing with the given PBKDF2 cost.
// A non-positive cost falls back to DefaultPasswordIterations.
func NewCredentialStore(iterations int) *CredentialStore {
	if iterations <= 0 {
		iterations = DefaultPasswordIterations
	}
	return &CredentialStore{iterations: iterations, random: rand.Reader}
}

// SetPassword replaces the user's password hash. The plaintext is not kept.
func (c *CredentialStore) SetPassword(user *domain.User, plaintext string) error {
	if user == nil {
		return domain.Errorf(domain.ErrInvalidArgument, "user is required")
	}
	hash, err := c.Hash(plaintext)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return nil
}

// VerifyPassword reports whether plaintext matches the user's stored hash.
// It never fails: malformed input or hashes simply do not match.
func (c *CredentialStore) VerifyPassword(user *domain.User, plaintext string) bool {
	if user == nil {
		return false
	}
	return c.Verify(user.PasswordHash, plaintext)
}

// Hash derives an encoded hash for plaintext with a fresh salt.
func (c *CredentialStore) Hash(plaintext string) (string, error) {
	if plaintext == "" || !utf8.ValidString(plaintext) {
		return "", domain.Errorf(domain.ErrInvalidArgument, "password must be a non-empty string")
	}
	salt, err := c.salt()
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	digest := derive(plaintext, salt, c.iterations)
	return fmt.Sprintf("%s:%d$%s$%s", hashMethod, c.iterations, salt, hex.EncodeToString(digest)), nil
}

// Verify compares plaintext with an encoded hash in constant time.
func (c *CredentialStore) Verify(encoded, plaintext string) bool {
	if plaintext == "" || !utf8.ValidString(plaintext) {
		return false
	}
	iterations, salt, want, ok := decodeHash(encoded)
	if !ok {
		return false
	}
	got := derive(plaintext, salt, iterations)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func derive(plaintext, salt string, iterations int) []byte {
	return pbkdf2.Key([]byte(plaintext), []byte(salt), iterations, sha256.Size, sha256.New)
}

func decodeHash(encoded string) (iterations int, salt string, digest []byte, ok bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 {
		return 0, "", nil, false
	}
	method, salt, hexDigest := parts[0], parts[1], parts[2]

	prefix := hashMethod + ":"
	if !strings.HasPrefix(method, prefix) || salt == "" {
		return 0, "", nil, false
	}
	iterations, err := strconv.Atoi(strings.TrimPrefix(method, prefix))
	if err != nil || iterations <= 0 {
		return 0, "", nil, false
	}
	digest, err = hex.DecodeString(hexDigest)
	if err != nil || len(digest) != sha256.Size {
		return 0, "", nil, false
	}
	return iterations, salt, digest, true
}

// salt draws saltLength characters from saltCharset without modulo bias.
func (c *CredentialStore) salt() (string, error) {
	const limit = 256 - 256%len(saltCharset)
	out := make([]byte, 0, saltLength)
	buf := make([]byte, saltLength*2)
	for len(out) < saltLength {
		if _, err := io.ReadFull(c.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, saltCharset[int(b)%len(saltCharset)])
			if len(out) == saltLength {
				break
			}
		}
	}
	return string(out), nil
}
