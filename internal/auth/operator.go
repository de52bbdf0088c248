package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/0xtaosu/meme-memos/internal/config"
)

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Operator is the single configured account allowed to mutate memos.
// A bcrypt hash takes precedence over a plain password.
type Operator struct {
	username string
	password []byte
	hash     []byte
}

func NewOperator(cfg config.AuthConfig) *Operator {
	o := &Operator{username: strings.TrimSpace(cfg.Username)}
	if h := strings.TrimSpace(cfg.PasswordHash); h != "" {
		o.hash = []byte(h)
	} else {
		o.password = []byte(cfg.Password)
	}
	return o
}

func (o *Operator) Check(username, password string) error {
	if o == nil || o.username == "" {
		return ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(o.username)) == 1
	var passOK bool
	if len(o.hash) > 0 {
		passOK = bcrypt.CompareHashAndPassword(o.hash, []byte(password)) == nil
	} else {
		passOK = len(o.password) > 0 && subtle.ConstantTimeCompare([]byte(password), o.password) == 1
	}
	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for auth.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
