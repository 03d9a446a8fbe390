package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/naturalhome/internal/domain"
	"github.com/phenrril/naturalhome/internal/usecase"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	category := strings.TrimSpace(q.Get("categoria"))

	page, err := s.products.List(r.Context(), domain.ProductFilter{
		Query:    query,
		Category: domain.Category(category),
		Scope:    domain.ScopePublic,
		Page:     pageParam(q.Get("page")),
		PageSize: usecase.PublicPageSize,
	})
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("listar productos")
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	discounted, err := s.products.ListDiscounted(r.Context(), usecase.DefaultDiscountLimit)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("listar ofertas")
		discounted = nil
	}

	s.render(w, r, http.StatusOK, "home.html", map[string]any{
		"Page":       page,
		"Query":      query,
		"Category":   category,
		"Categories": s.products.Categories(),
		"Discounted": discounted,
		"BasePath":   "/",
	})
}

type productJSON struct {
	ID           uint     `json:"id"`
	Title        string   `json:"titulo"`
	Description  string   `json:"descripcion"`
	Price        float64  `json:"precio"`
	FinalPrice   float64  `json:"precio_final"`
	Unit         string   `json:"unidad"`
	UnitDisplay  string   `json:"unidad_display"`
	Image        string   `json:"imagen"`
	Images       []string `json:"imagenes"`
	Fractionable bool     `json:"fraccionado"`
}

func (s *Server) apiProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "producto no encontrado"})
		return
	}
	p, err := s.products.Get(r.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "producto no encontrado"})
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Uint64("product_id", id).Msg("api producto")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error interno"})
		return
	}
	writeJSON(w, http.StatusOK, s.productPayload(r, p))
}

func (s *Server) productPayload(r *http.Request, p *domain.Product) productJSON {
	out := productJSON{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Price:        p.Price.InexactFloat64(),
		FinalPrice:   p.EffectivePrice().InexactFloat64(),
		Unit:         string(p.Unit),
		UnitDisplay:  p.Unit.Label(),
		Fractionable: p.Fractionable,
	}
	if u, ok := s.media.ResolveURL(p.PrimaryImage); ok {
		out.Image = s.absoluteURL(r, u)
	}
	for _, img := range domain.AllImages(p, s.media) {
		out.Images = append(out.Images, s.absoluteURL(r, img.URL))
	}
	if len(out.Images) == 0 {
		out.Images = []string{s.absoluteURL(r, s.opts.PlaceholderImage)}
	}
	return out
}

// pageParam sigue al paginador del sitio: cualquier valor no numérico es la página 1.
func pageParam(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
