package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/phenrril/naturalhome/internal/domain"
)

var (
	errUnverifiedEmail = errors.New("email de Google sin verificar")
	errBadImagesData   = errors.New("imágenes adicionales con formato inválido")
)

type httpStatusError struct{ code int }

func (e *httpStatusError) Error() string { return fmt.Sprintf("status %d", e.code) }

// formError traduce un error del catálogo a status y mensaje para el formulario.
func formError(err error) (int, string, map[string]string) {
	var verr *domain.ValidationError
	var serr *domain.StoreWriteError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "Todos los campos marcados con * son obligatorios", verr.Fields
	case errors.Is(err, domain.ErrMissingImage):
		return http.StatusBadRequest, "Debe subir una imagen para el producto", nil
	case errors.Is(err, errBadImagesData):
		return http.StatusBadRequest, errBadImagesData.Error(), nil
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "El producto no existe", nil
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "La sesión expiró, volvé a ingresar", nil
	case errors.As(err, &serr):
		return http.StatusInternalServerError, "No se pudo guardar " + serr.Op, nil
	default:
		return http.StatusInternalServerError, "Error al guardar el producto", nil
	}
}
