// Package crypt verifies and produces stored player passwords.
//
// Three forms are accepted: plaintext (the historical default), DES
// crypt(3) as written by older MUD servers, and bcrypt.
package crypt

import (
	"crypto/subtle"
	"strings"

	descrypt "github.com/digitive/crypt"
	"golang.org/x/crypto/bcrypt"
)

// Crypt performs traditional Unix DES crypt(3).
func Crypt(password, salt string) string {
	result, err := descrypt.Crypt(password, salt)
	if err != nil {
		return ""
	}
	return result
}

// CheckDES verifies a password against a DES-encrypted hash.
func CheckDES(password, storedHash string) bool {
	if len(storedHash) != 13 {
		return false
	}
	computed := Crypt(password, storedHash[:2])
	return computed != "" && computed == storedHash
}

// IsBcrypt reports whether stored looks like a bcrypt hash.
func IsBcrypt(stored string) bool {
	return len(stored) == 60 && strings.HasPrefix(stored, "$2")
}

// IsDES reports whether stored has the shape of a DES crypt(3) hash:
// 13 characters from the crypt alphabet.
func IsDES(stored string) bool {
	if len(stored) != 13 {
		return false
	}
	for i := 0; i < len(stored); i++ {
		c := stored[i]
		if !(c == '.' || c == '/' || c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}

// IsHashed reports whether stored would be checked as a hash. Plaintext
// passwords of that shape cannot be stored as they are.
func IsHashed(stored string) bool { return IsBcrypt(stored) || IsDES(stored) }

// CheckPassword compares a typed password with the stored value. Hashed
// values are only ever compared through their hash.
func CheckPassword(password, stored string) bool {
	switch {
	case stored == "":
		return false
	case IsBcrypt(stored):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	case IsDES(stored):
		return CheckDES(password, stored)
	default:
		return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
	}
}

// HashPassword returns the bcrypt form of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
