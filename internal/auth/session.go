package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidSessionToken indica token anônimo malformado.
var ErrInvalidSessionToken = errors.New("token de sessão inválido")

// NewSessionToken gera identificador aleatório para sessões anônimas do botão de pânico.
func NewSessionToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidateSessionToken confere formato (32 caracteres base64url).
func ValidateSessionToken(token string) error {
	token = strings.TrimSpace(token)
	if len(token) != 32 {
		return ErrInvalidSessionToken
	}
	if _, err := base64.RawURLEncoding.DecodeString(token); err != nil {
		return ErrInvalidSessionToken
	}
	return nil
}
