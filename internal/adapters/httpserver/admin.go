package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/naturalhome/internal/domain"
	"github.com/phenrril/naturalhome/internal/usecase"
)

const (
	multipartMemory  = 8 << 20
	keepFieldPrefix  = "keep_additional_image_"
	fieldImagesData  = "additional_images_data"
	fieldPrimaryFile = "imagen"
)

// productForm son los valores que se vuelven a mostrar en el formulario.
type productForm struct {
	Title           string
	Price           string
	Unit            string
	Category        string
	Description     string
	Fractionable    bool
	DiscountActive  bool
	DiscountPercent int
}

func formFromProduct(p *domain.Product) productForm {
	return productForm{
		Title:           p.Title,
		Price:           p.Price.StringFixed(2),
		Unit:            string(p.Unit),
		Category:        string(p.Category),
		Description:     p.Description,
		Fractionable:    p.Fractionable,
		DiscountActive:  p.DiscountActive,
		DiscountPercent: p.DiscountPercent,
	}
}

func (s *Server) handleAdminProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	page, err := s.products.List(r.Context(), domain.ProductFilter{
		Query:    query,
		Scope:    domain.ScopeAdmin,
		Page:     pageParam(q.Get("page")),
		PageSize: usecase.AdminPageSize,
	})
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("listar productos admin")
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusOK, "admin_products.html", map[string]any{
		"Title":    "Productos",
		"Page":     page,
		"Query":    query,
		"Category": "",
		"BasePath": "/admin/productos/",
	})
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, p *domain.Product, form productForm, errMsg string, fields map[string]string) {
	title, action := "Nuevo producto", "/admin/productos/nuevo/"
	if p != nil {
		title, action = "Editar "+p.Title, fmt.Sprintf("/admin/productos/%d/editar/", p.ID)
	}
	s.render(w, r, status, "admin_form.html", map[string]any{
		"Title":         title,
		"Action":        action,
		"Product":       p,
		"Form":          form,
		"Error":         errMsg,
		"Fields":        fields,
		"Units":         domain.Units,
		"Categories":    domain.Categories,
		"MaxAdditional": s.opts.MaxAdditional,
	})
}

func (s *Server) handleAdminNewForm(w http.ResponseWriter, r *http.Request) {
	s.renderForm(w, r, http.StatusOK, nil, productForm{Unit: string(domain.UnitUnit), Category: string(domain.CategoryOther)}, "", nil)
}

func (s *Server) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	if err := s.parseProductForm(w, r); err != nil {
		s.renderForm(w, r, http.StatusBadRequest, nil, productForm{}, "Formulario inválido", nil)
		return
	}
	form := readProductForm(r)
	if !form.DiscountActive {
		form.DiscountPercent = 0
	}

	in := usecase.CreateProductInput{
		Title:           form.Title,
		Price:           form.Price,
		Unit:            form.Unit,
		Category:        form.Category,
		Description:     form.Description,
		Fractionable:    form.Fractionable,
		DiscountActive:  form.DiscountActive,
		DiscountPercent: form.DiscountPercent,
	}
	var err error
	if in.Primary, err = readUpload(r, fieldPrimaryFile); err == nil {
		in.Additional, err = readImagesData(r)
	}
	if err == nil {
		_, err = s.products.Create(r.Context(), adminFrom(r.Context()), in)
	}
	if err != nil {
		status, msg, fields := formError(err)
		if status >= http.StatusInternalServerError {
			log.Ctx(r.Context()).Error().Err(err).Msg("alta de producto")
		}
		s.renderForm(w, r, status, nil, form, msg, fields)
		return
	}
	http.Redirect(w, r, "/admin/productos/", http.StatusFound)
}

func (s *Server) handleAdminEditForm(w http.ResponseWriter, r *http.Request) {
	p, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	s.renderForm(w, r, http.StatusOK, p, formFromProduct(p), "", nil)
}

func (s *Server) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	if err := s.parseProductForm(w, r); err != nil {
		s.renderForm(w, r, http.StatusBadRequest, p, formFromProduct(p), "Formulario inválido", nil)
		return
	}
	admin := adminFrom(r.Context())
	if _, del := r.PostForm["delete"]; del {
		if err := s.products.Delete(r.Context(), admin, p.ID); err != nil {
			status, msg, _ := formError(err)
			http.Error(w, msg, status)
			return
		}
		http.Redirect(w, r, "/admin/productos/", http.StatusFound)
		return
	}

	form := readProductForm(r)
	in := usecase.UpdateProductInput{
		Title:           postedField(r, "titulo"),
		Price:           postedField(r, "precio"),
		Unit:            postedField(r, "unidad"),
		Category:        postedField(r, "categoria"),
		Description:     &form.Description,
		Fractionable:    &form.Fractionable,
		DiscountActive:  &form.DiscountActive,
		DiscountPercent: &form.DiscountPercent,
		Keep:            readKeepMask(r),
	}
	var err error
	if in.Primary, err = readUpload(r, fieldPrimaryFile); err == nil {
		in.Additional, err = readImagesData(r)
	}
	if err == nil {
		_, err = s.products.Update(r.Context(), admin, p.ID, in)
	}
	if err != nil {
		status, msg, fields := formError(err)
		if status >= http.StatusInternalServerError {
			log.Ctx(r.Context()).Error().Err(err).Uint("product_id", p.ID).Msg("edición de producto")
		}
		s.renderForm(w, r, status, p, form, msg, fields)
		return
	}
	http.Redirect(w, r, "/admin/productos/", http.StatusFound)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err == nil {
		err = s.products.Delete(r.Context(), adminFrom(r.Context()), uint(id))
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		http.Redirect(w, r, "/admin/", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/admin/productos/", http.StatusFound)
}

func (s *Server) productFromPath(w http.ResponseWriter, r *http.Request) (*domain.Product, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	p, err := s.products.Get(r.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return nil, false
		}
		log.Ctx(r.Context()).Error().Err(err).Uint64("product_id", id).Msg("leer producto")
		http.Error(w, "error", http.StatusInternalServerError)
		return nil, false
	}
	return p, true
}

func (s *Server) parseProductForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.opts.MaxUploadMB)<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}
	return nil
}

func readProductForm(r *http.Request) productForm {
	_, fractionable := r.PostForm["fraccionado"]
	_, discount := r.PostForm["descuento_activo"]
	return productForm{
		Title:           strings.TrimSpace(r.PostFormValue("titulo")),
		Price:           strings.TrimSpace(r.PostFormValue("precio")),
		Unit:            strings.TrimSpace(r.PostFormValue("unidad")),
		Category:        strings.TrimSpace(r.PostFormValue("categoria")),
		Description:     strings.TrimSpace(r.PostFormValue("descripcion")),
		Fractionable:    fractionable,
		DiscountActive:  discount,
		DiscountPercent: percentParam(r.PostFormValue("porcentaje_descuento")),
	}
}

// percentParam acepta solo dígitos; cualquier otra cosa es 0.
func percentParam(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.IndexFunc(raw, func(c rune) bool { return c < '0' || c > '9' }) >= 0 {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 100
	}
	return domain.ClampDiscountPercent(n)
}

func postedField(r *http.Request, key string) *string {
	if _, ok := r.PostForm[key]; !ok {
		return nil
	}
	v := r.PostFormValue(key)
	return &v
}

// readKeepMask lee keep_additional_image_<i>: "1" conserva, cualquier otro valor descarta.
func readKeepMask(r *http.Request) map[int]bool {
	keep := map[int]bool{}
	for k, v := range r.PostForm {
		if !strings.HasPrefix(k, keepFieldPrefix) || len(v) == 0 {
			continue
		}
		i, err := strconv.Atoi(strings.TrimPrefix(k, keepFieldPrefix))
		if err != nil || i < 0 {
			continue
		}
		keep[i] = strings.TrimSpace(v[0]) == "1"
	}
	return keep
}

func readUpload(r *http.Request, field string) (*usecase.Upload, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &usecase.Upload{Data: data, Filename: hdr.Filename}, nil
}

func readImagesData(r *http.Request) ([]usecase.Base64Entry, error) {
	entries, err := usecase.ParseBase64Entries(r.PostFormValue(fieldImagesData))
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("additional_images_data inválido")
		return nil, errBadImagesData
	}
	return entries, nil
}
