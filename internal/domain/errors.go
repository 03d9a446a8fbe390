package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("producto no encontrado")
	ErrMissingImage = errors.New("debe subir una imagen para el producto")
	ErrUnauthorized = errors.New("se requiere una sesión de administrador")
)

// ValidationError agrupa errores por campo del formulario.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) Empty() bool { return e == nil || len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "datos inválidos: " + strings.Join(parts, ", ")
}

// StoreWriteError envuelve fallas de escritura en la base o en el almacenamiento de imágenes.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return "no se pudo guardar (" + e.Op + "): " + e.Err.Error()
}

func (e *StoreWriteError) Unwrap() error { return e.Err }
