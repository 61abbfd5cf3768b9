// Package auth implements admin login and bearer-token protection for the admin API.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"cellfinder/internal/token"
)

var (
	// ErrInvalidCredentials is returned when username or password do not match
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Service defines the admin authentication interface
type Service interface {
	Login(username, password string) (string, error)
	Verify(tok string) (*token.Claims, error)
}

type service struct {
	username string
	password string
	codec    *token.Codec
}

// NewService creates an authenticator for a single configured admin account.
func NewService(username, password string, codec *token.Codec) Service {
	return &service{
		username: username,
		password: password,
		codec:    codec,
	}
}

// Login checks credentials and issues a token for the admin principal.
func (s *service) Login(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	userOK := equalConstantTime(username, s.username)
	passOK := equalConstantTime(password, s.password)
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}

	tok, err := s.codec.Issue(username)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	return tok, nil
}

func (s *service) Verify(tok string) (*token.Claims, error) {
	return s.codec.Verify(tok)
}

// equalConstantTime hashes both sides first so the comparison does not leak length.
func equalConstantTime(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
