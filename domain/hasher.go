package domain

// Hasher is the core port for any password hashing strategy.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}
