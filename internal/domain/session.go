package domain

import (
	"strings"
	"time"
)

// AdminSession es la credencial que el catálogo exige en cada operación de escritura.
type AdminSession struct {
	User      string
	Provider  string
	StartedAt time.Time
}

func (s *AdminSession) Authenticated() bool {
	return s != nil && strings.TrimSpace(s.User) != ""
}
