package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ImageRef identifica una imagen guardada: la clave en el almacenamiento y el
// nombre que se muestra.
type ImageRef struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// ImageList es la lista ordenada de imágenes adicionales de un producto. Se
// persiste como texto JSON en una sola columna.
type ImageList []ImageRef

type imageRefWire struct {
	Path     *string `json:"path"`
	Filename *string `json:"filename"`
}

// DecodeImageList interpreta el texto guardado. Ante cualquier dato corrupto
// devuelve una lista vacía: el catálogo se tiene que poder mostrar igual.
func DecodeImageList(raw string) ImageList {
	list, ok := decodeImageList(raw)
	if !ok {
		return ImageList{}
	}
	return list
}

func decodeImageList(raw string) (ImageList, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ImageList{}, true
	}
	var wire []imageRefWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, false
	}
	out := make(ImageList, 0, len(wire))
	for _, w := range wire {
		if w.Path == nil || w.Filename == nil || strings.TrimSpace(*w.Path) == "" {
			return nil, false
		}
		out = append(out, ImageRef{Path: *w.Path, Filename: *w.Filename})
	}
	return out, true
}

// EncodeImageList serializa la lista; una lista vacía se guarda como "[]".
func EncodeImageList(list ImageList) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal([]ImageRef(list))
	if err != nil {
		// ImageRef sólo tiene strings: Marshal no falla.
		return "[]"
	}
	return string(b)
}

func (l ImageList) Value() (driver.Value, error) {
	return EncodeImageList(l), nil
}

func (l *ImageList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = ImageList{}
	case string:
		*l = DecodeImageList(v)
	case []byte:
		*l = DecodeImageList(string(v))
	default:
		return fmt.Errorf("image list: tipo no soportado %T", src)
	}
	return nil
}

// Without devuelve una copia sin las posiciones marcadas para descartar.
// keep se indexa contra la lista actual; una posición sin decisión se conserva.
func (l ImageList) Without(keep map[int]bool) (kept ImageList, dropped ImageList) {
	kept = make(ImageList, 0, len(l))
	for i, ref := range l {
		if k, ok := keep[i]; ok && !k {
			dropped = append(dropped, ref)
			continue
		}
		kept = append(kept, ref)
	}
	return kept, dropped
}

// MediaBase arma URLs navegables a partir de las claves guardadas.
type MediaBase struct {
	Prefix string
}

const DefaultMediaPrefix = "/media/"

func isAbsoluteURL(s string) bool {
	ls := strings.ToLower(s)
	return strings.HasPrefix(ls, "http://") || strings.HasPrefix(ls, "https://") || strings.HasPrefix(ls, "//")
}

// absoluteURLOK exige un host: "///" o "http:///x" no son URLs navegables.
func absoluteURLOK(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}

// ResolveURL devuelve ("", false) cuando la clave está vacía o no es válida.
func (b MediaBase) ResolveURL(key string) (string, bool) {
	k := strings.TrimSpace(key)
	if k == "" {
		return "", false
	}
	if isAbsoluteURL(k) {
		if !absoluteURLOK(k) {
			return "", false
		}
		return k, true
	}
	k = strings.Trim(strings.ReplaceAll(k, "\\", "/"), "/")
	if k == "" {
		return "", false
	}
	segs := strings.Split(k, "/")
	for i, s := range segs {
		if s == "" || s == "." || s == ".." {
			return "", false
		}
		segs[i] = url.PathEscape(s)
	}
	prefix := b.Prefix
	if prefix == "" {
		prefix = DefaultMediaPrefix
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.Join(segs, "/"), true
}

type ImageKind string

const (
	ImageKindPrimary    ImageKind = "primary"
	ImageKindAdditional ImageKind = "additional"
)

type ImageView struct {
	URL  string
	Kind ImageKind
	Name string
}

// AllImages es la única fuente de la galería de un producto: primero la imagen
// principal y luego las adicionales en el orden guardado. Las que no resuelven
// a una URL se omiten.
func AllImages(p *Product, base MediaBase) []ImageView {
	if p == nil {
		return nil
	}
	out := make([]ImageView, 0, 1+len(p.AdditionalImages))
	if u, ok := base.ResolveURL(p.PrimaryImage); ok {
		out = append(out, ImageView{URL: u, Kind: ImageKindPrimary, Name: path.Base(strings.ReplaceAll(p.PrimaryImage, "\\", "/"))})
	}
	for _, ref := range p.AdditionalImages {
		u, ok := base.ResolveURL(ref.Path)
		if !ok {
			continue
		}
		name := ref.Filename
		if name == "" {
			name = path.Base(ref.Path)
		}
		out = append(out, ImageView{URL: u, Kind: ImageKindAdditional, Name: name})
	}
	return out
}
