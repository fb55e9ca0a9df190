package validation

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

// BcryptCost is the work factor for password hashes
var BcryptCost = 12

// StrongPassword reports whether p has at least MinPasswordLength characters
// and mixes upper case, lower case, digits and symbols.
func StrongPassword(p string) bool {
	var length int
	var upper, lower, digit, symbol bool
	for _, r := range p {
		length++
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return length >= MinPasswordLength && upper && lower && digit && symbol
}

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
