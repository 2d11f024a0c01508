package security

import (
	"errors"

	"golang.org/x/crypto/argon2"
)

// storeKeySalt is fixed: the derived key must be reproducible from the passphrase alone
// so a restarted client can open values it sealed earlier.
var storeKeySalt = []byte("medconnect/client persisted store v1")

// DeriveStoreKey derives the 32-byte persisted store key from passphrase using Argon2id.
func DeriveStoreKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("security: store passphrase is empty")
	}
	return argon2.IDKey([]byte(passphrase), storeKeySalt, 1, 64*1024, 4, 32), nil
}
