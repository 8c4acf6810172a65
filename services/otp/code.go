package otp

import (
	"crypto/rand"
	"encoding/base32"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const CodeDigits = otp.DigitsSix

// secretSize matches the 160-bit key length HOTP recommends.
const secretSize = 20

var codeOpts = hotp.ValidateOpts{
	Digits:    CodeDigits,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateCode derives a code by HOTP from a single-use random secret. The
// secret is discarded; only the bcrypt digest of the code is kept.
func GenerateCode() (string, error) {
	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return hotp.GenerateCodeCustom(base32.StdEncoding.EncodeToString(secret), 0, codeOpts)
}

// ValidCodeFormat reports whether code is exactly six ASCII digits.
func ValidCodeFormat(code string) bool {
	if len(code) != CodeDigits.Length() {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
