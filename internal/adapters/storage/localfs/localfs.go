package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidKey = errors.New("clave de archivo inválida")

// Storage guarda imágenes en un directorio local. Las claves usan "/" como
// separador y siempre quedan dentro de Root.
type Storage struct {
	Root string
}

func New(root string) *Storage {
	return &Storage{Root: root}
}

func (s *Storage) resolve(key string) (string, string, error) {
	k := strings.Trim(strings.ReplaceAll(strings.TrimSpace(key), "\\", "/"), "/")
	if k == "" {
		return "", "", ErrInvalidKey
	}
	for _, seg := range strings.Split(k, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", "", ErrInvalidKey
		}
	}
	return k, filepath.Join(s.Root, filepath.FromSlash(k)), nil
}

// SaveImage escribe data bajo key y devuelve la clave normalizada.
func (s *Storage) SaveImage(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	k, full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("crear directorio: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("crear archivo: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("escribir archivo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("cerrar archivo: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("mover archivo: %w", err)
	}
	return k, nil
}

// Remove borra el archivo; si ya no existe no es un error.
func (s *Storage) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
