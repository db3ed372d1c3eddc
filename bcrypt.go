package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// bcryptMatches verifies hashes written before PBKDF2 hashing was adopted.
// Matches are always reported as needing a rehash.
func bcryptMatches(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// HashLegacyPassword produces a bcrypt hash. It only exists so hosts can seed
// fixtures that exercise the migration path; new hashes go through PasswordHasher.
func HashLegacyPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}
