package utils

import "golang.org/x/crypto/bcrypt"

// minBcryptCost keeps a misconfigured BCRYPT_COST from producing
// trivially crackable hashes.
const minBcryptCost = 10

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(plain string, cost int) (string, error) {
	if cost < minBcryptCost {
		cost = minBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
