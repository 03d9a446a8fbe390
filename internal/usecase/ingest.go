package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/naturalhome/internal/domain"
)

type ImagePurpose string

const (
	PurposePrimary    ImagePurpose = "principal"
	PurposeAdditional ImagePurpose = "adicionales"
)

const defaultImageExt = ".jpg"

var (
	errEmptyPayload = errors.New("imagen vacía")
	errBadBase64    = errors.New("base64 inválido")
)

// Base64Entry es una imagen adicional enviada como texto desde el formulario.
type Base64Entry struct {
	Payload  string
	MimeType string
	Filename string
}

type base64EntryWire struct {
	Base64   *string `json:"base64"`
	Payload  *string `json:"payload"`
	Type     string  `json:"type"`
	Filename string  `json:"filename"`
}

func (e *Base64Entry) UnmarshalJSON(b []byte) error {
	var w base64EntryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch {
	case w.Base64 != nil:
		e.Payload = *w.Base64
	case w.Payload != nil:
		e.Payload = *w.Payload
	default:
		e.Payload = ""
	}
	e.MimeType = strings.TrimSpace(w.Type)
	e.Filename = strings.TrimSpace(w.Filename)
	return nil
}

func (e Base64Entry) Validate() error {
	if strings.TrimSpace(e.Payload) == "" {
		return errEmptyPayload
	}
	return nil
}

// ParseBase64Entries valida el JSON del campo additional_images_data. Un texto
// vacío no trae imágenes; los elementos que no son objetos se descartan.
func ParseBase64Entries(raw string) ([]Base64Entry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("imágenes adicionales: %w", err)
	}
	out := make([]Base64Entry, 0, len(items))
	for i, it := range items {
		var e Base64Entry
		if err := json.Unmarshal(it, &e); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("imagen adicional con formato inválido")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ImageIngestor decodifica, nombra y guarda las imágenes subidas.
type ImageIngestor struct {
	Storage domain.FileStorage
	Now     func() time.Time
}

func NewImageIngestor(storage domain.FileStorage) *ImageIngestor {
	return &ImageIngestor{Storage: storage, Now: time.Now}
}

func (in *ImageIngestor) now() time.Time {
	if in.Now == nil {
		return time.Now()
	}
	return in.Now()
}

// IngestMultipart guarda un archivo subido bajo productos/<id>/<purpose>/.
func (in *ImageIngestor) IngestMultipart(ctx context.Context, productID uint, purpose ImagePurpose, data []byte, declaredName string) (domain.ImageRef, error) {
	if len(data) == 0 {
		return domain.ImageRef{}, errEmptyPayload
	}
	name := sanitizeFileName(declaredName)
	if path.Ext(name) == "" {
		name += mimetype.Detect(data).Extension()
	}
	key := fmt.Sprintf("productos/%d/%s/%s_%s", productID, purpose, uuid.NewString()[:8], name)
	stored, err := in.Storage.SaveImage(ctx, key, data)
	if err != nil {
		return domain.ImageRef{}, &domain.StoreWriteError{Op: "imagen " + string(purpose), Err: err}
	}
	display := strings.TrimSpace(declaredName)
	if display == "" {
		display = name
	}
	return domain.ImageRef{Path: stored, Filename: display}, nil
}

// IngestBase64Batch procesa las entradas en orden. Una entrada que no se puede
// decodificar se registra y se saltea; una falla del almacenamiento corta el lote.
// startIndex numera los archivos; el sufijo aleatorio evita pisar una clave
// que otro guardado del mismo segundo todavía referencia.
func (in *ImageIngestor) IngestBase64Batch(ctx context.Context, entries []Base64Entry, productID uint, startIndex int) ([]domain.ImageRef, error) {
	refs := make([]domain.ImageRef, 0, len(entries))
	stamp := in.now().Format("20060102150405")
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return refs, err
		}
		data, mime, err := decodeEntry(e)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Uint("product_id", productID).Int("index", i).Msg("imagen adicional descartada")
			continue
		}
		name := fmt.Sprintf("producto_%d_%s_%d_%s%s", productID, stamp, startIndex+i, uuid.NewString()[:8], extensionFor(mime))
		key := fmt.Sprintf("productos/%d/%s/%s", productID, PurposeAdditional, name)
		stored, err := in.Storage.SaveImage(ctx, key, data)
		if err != nil {
			return refs, &domain.StoreWriteError{Op: "imagen adicional", Err: err}
		}
		display := e.Filename
		if display == "" {
			display = name
		}
		refs = append(refs, domain.ImageRef{Path: stored, Filename: display})
	}
	return refs, nil
}

// decodeEntry separa "<mime>;base64,<data>" si viene el marcador; si no, todo
// el payload es base64 y el mime es el declarado.
func decodeEntry(e Base64Entry) ([]byte, string, error) {
	if err := e.Validate(); err != nil {
		return nil, "", err
	}
	payload := strings.TrimSpace(e.Payload)
	mime := e.MimeType
	if i := strings.Index(payload, ";base64,"); i >= 0 {
		if header := strings.TrimPrefix(strings.TrimSpace(payload[:i]), "data:"); header != "" {
			mime = header
		}
		payload = payload[i+len(";base64,"):]
	}
	payload = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, "", errEmptyPayload
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(payload)
		if rawErr != nil {
			return nil, "", fmt.Errorf("%w: %v", errBadBase64, err)
		}
	}
	if len(data) == 0 {
		return nil, "", errEmptyPayload
	}
	return data, mime, nil
}

var fallbackExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func extensionFor(mime string) string {
	m := strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if !strings.HasPrefix(m, "image/") {
		return defaultImageExt
	}
	if ext, ok := fallbackExt[m]; ok {
		return ext
	}
	if mt := mimetype.Lookup(m); mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return defaultImageExt
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "imagen"
	}
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	mapped := strings.Map(func(r rune) rune {
		if r == '.' || r == '-' || r == '_' || unicode.IsDigit(r) || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return '-'
	}, name)
	mapped = strings.Trim(mapped, ".-")
	if mapped == "" {
		return "imagen"
	}
	if len(mapped) > 80 {
		ext := path.Ext(mapped)
		if len(ext) > 10 {
			ext = ""
		}
		mapped = mapped[:80-len(ext)] + ext
	}
	return mapped
}
