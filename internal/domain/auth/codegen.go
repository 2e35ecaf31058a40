package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const VerificationCodeLength = 6

// codeSpace is 10^VerificationCodeLength.
const codeSpace = 1_000_000

// rejectAbove is the largest multiple of codeSpace that fits in a uint32.
const rejectAbove = (1<<32 - 1) / codeSpace * codeSpace

// generateCode returns a uniformly distributed zero-padded numeric code.
func generateCode() (string, error) {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		n := binary.BigEndian.Uint32(b[:])
		if n < rejectAbove {
			return fmt.Sprintf("%0*d", VerificationCodeLength, n%codeSpace), nil
		}
	}
}

// hashCode is the stored form of a verification code.
func hashCode(email, code string) string {
	sum := sha256.Sum256([]byte(email + ":" + code))
	return hex.EncodeToString(sum[:])
}
