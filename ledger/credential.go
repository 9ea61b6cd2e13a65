package ledger

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters for credential hashing. Interactive-login strength is
// enough here: the credential only gates change-of-credential flows, it is
// never used for external authentication.
const (
	credTime    = 1
	credMemory  = 64 * 1024
	credThreads = 4
	credKeyLen  = 32
	credSaltLen = 16
)

// Credential is a stored argon2id password hash. The zero value means
// "no credential set".
type Credential struct {
	Salt []byte
	Hash []byte
}

// NewCredential derives a credential from a plaintext password.
func NewCredential(password string) (Credential, error) {
	salt := make([]byte, credSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return Credential{}, fmt.Errorf("generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, credTime, credMemory, credThreads, credKeyLen)
	return Credential{Salt: salt, Hash: hash}, nil
}

// IsSet reports whether a credential has been established.
func (c Credential) IsSet() bool {
	return len(c.Hash) > 0
}

// Verify reports whether the password matches the stored hash.
// An unset credential matches only the empty password.
func (c Credential) Verify(password string) bool {
	if !c.IsSet() {
		return password == ""
	}
	hash := argon2.IDKey([]byte(password), c.Salt, credTime, credMemory, credThreads, credKeyLen)
	return subtle.ConstantTimeCompare(hash, c.Hash) == 1
}

// Encode renders the credential as "salt:hash" in hex for persistence.
func (c Credential) Encode() string {
	if !c.IsSet() {
		return ""
	}
	return hex.EncodeToString(c.Salt) + ":" + hex.EncodeToString(c.Hash)
}

// DecodeCredential parses the Encode form back into a Credential.
func DecodeCredential(s string) (Credential, error) {
	if s == "" {
		return Credential{}, nil
	}
	salt, hash, ok := strings.Cut(s, ":")
	if !ok {
		return Credential{}, fmt.Errorf("malformed credential")
	}
	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return Credential{}, fmt.Errorf("malformed credential salt: %w", err)
	}
	hashBytes, err := hex.DecodeString(hash)
	if err != nil {
		return Credential{}, fmt.Errorf("malformed credential hash: %w", err)
	}
	return Credential{Salt: saltBytes, Hash: hashBytes}, nil
}
