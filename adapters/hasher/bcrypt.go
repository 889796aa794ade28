package hasher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/asistenteai/asistente/domain"
)

// New returns a domain.Hasher backed by bcrypt.
func New() domain.Hasher { return bcryptHasher{} }

type bcryptHasher struct{}

func (h bcryptHasher) Hash(password string) (string, error) {
	sum, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(sum), nil
}

func (h bcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
