package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt hash of p
func HashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(b), err
}

// VerifyPassword reports a non-nil error when plain does not match hash
func VerifyPassword(plain, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
