package password

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

const cost = 12

// bcrypt ignores input past 72 bytes; longer passwords are digested first so
// every character counts.
const maxBcryptInput = 72

func prepare(password string) []byte {
	if len(password) <= maxBcryptInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// Hash hashes password using bcrypt
func Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(prepare(password), cost)
	return string(hashed), err
}

// Verify compares password with hash
func Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prepare(password)) == nil
}
