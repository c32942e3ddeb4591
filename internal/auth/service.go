package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Service issues and verifies signed identity tokens carrying an opaque user id.
type Service struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

func NewService(secret []byte, expiresIn time.Duration) *Service {
	return &Service{
		secret:    secret,
		expiresIn: expiresIn,
		now:       time.Now,
	}
}

type Identity struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewIdentity mints a fresh user id and its token.
func (s *Service) NewIdentity() (*Identity, error) {
	return s.Issue(uuid.New().String())
}

func (s *Service) Issue(userID string) (*Identity, error) {
	now := s.now()
	expiresAt := now.Add(s.expiresIn)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Identity{UserID: userID, Token: token, ExpiresAt: expiresAt}, nil
}

// UserIDFromToken validates tokenString and returns the user id it carries.
func (s *Service) UserIDFromToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}

	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid token")
	}

	return claims.Subject, nil
}
