package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Each increment doubles the time a
// single hash takes; 12 lands around 250ms on current server hardware, slow
// enough that an offline brute-force attack against stolen hashes becomes
// impractical while a single login stays comfortably interactive. Raise it
// as hardware gets faster; existing hashes keep working because the cost is
// encoded in the hash itself.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification.
//
// bcrypt generates a random salt per hash and embeds both salt and cost in
// the output string, so nothing besides the hash needs storing and two
// hashes of the same password never match. The cost is a field rather than
// a constant so tests can run at the bcrypt minimum instead of paying the
// production work factor on every account they create.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a reduced cost.
// Do not use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt. The output embeds
// the salt and cost; store it as-is.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		// bcrypt silently truncates beyond 72 bytes; reject instead.
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks a plaintext password against a stored hash. bcrypt reads
// the salt and cost back out of the hash, so no extra parameters are
// needed, and the comparison runs in constant time so response timing
// reveals nothing about how close a guess was.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
