package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Secret is the portal's shared login password, kept only as a bcrypt hash.
type Secret struct {
	hash []byte
}

func NewSecret(password string) (*Secret, error) {
	return newSecret(password, bcrypt.DefaultCost)
}

func newSecret(password string, cost int) (*Secret, error) {
	if password == "" {
		return nil, errors.New("shared password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash shared password: %w", err)
	}
	return &Secret{hash: hash}, nil
}

func (s *Secret) Verify(password string) bool {
	return bcrypt.CompareHashAndPassword(s.hash, []byte(password)) == nil
}
