package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("registro no encontrado")

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
