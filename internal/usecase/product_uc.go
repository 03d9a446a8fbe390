package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/phenrril/naturalhome/internal/domain"
)

const (
	PublicPageSize       = 20
	AdminPageSize        = 10
	DefaultDiscountLimit = 10
)

var maxPrice = decimal.RequireFromString("99999999.99")

// Upload es un archivo recibido por multipart.
type Upload struct {
	Data     []byte
	Filename string
}

func (u *Upload) present() bool { return u != nil && len(u.Data) > 0 }

type CreateProductInput struct {
	Title           string
	Price           string
	Unit            string
	Category        string
	Description     string
	Fractionable    bool
	DiscountActive  bool
	DiscountPercent int
	Primary         *Upload
	Additional      []Base64Entry
}

// UpdateProductInput: los campos nil no se tocan. Keep decide, por posición en
// la lista guardada, qué imágenes adicionales se conservan; sin decisión se conserva.
type UpdateProductInput struct {
	Title           *string
	Price           *string
	Unit            *string
	Category        *string
	Description     *string
	Fractionable    *bool
	DiscountActive  *bool
	DiscountPercent *int
	Primary         *Upload
	Keep            map[int]bool
	Additional      []Base64Entry
}

type ProductUC struct {
	Products            domain.ProductRepo
	Images              *ImageIngestor
	Storage             domain.FileStorage
	MaxAdditionalImages int
}

func (uc *ProductUC) List(ctx context.Context, f domain.ProductFilter) (domain.ProductPage, error) {
	if f.PageSize <= 0 {
		f.PageSize = PublicPageSize
		if f.Scope == domain.ScopeAdmin {
			f.PageSize = AdminPageSize
		}
	}
	if f.Page < 1 {
		f.Page = 1
	}
	f.Query = strings.TrimSpace(f.Query)
	f.Category = domain.Category(strings.TrimSpace(string(f.Category)))

	list, total, err := uc.Products.List(ctx, f)
	if err != nil {
		return domain.ProductPage{}, err
	}
	pages := int((total + int64(f.PageSize) - 1) / int64(f.PageSize))
	if pages == 0 {
		pages = 1
	}
	if f.Page > pages {
		f.Page = pages
		if list, total, err = uc.Products.List(ctx, f); err != nil {
			return domain.ProductPage{}, err
		}
	}
	return domain.ProductPage{Products: list, Total: total, Page: f.Page, Pages: pages, PageSize: f.PageSize}, nil
}

func (uc *ProductUC) ListDiscounted(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = DefaultDiscountLimit
	}
	return uc.Products.ListDiscounted(ctx, limit)
}

func (uc *ProductUC) Get(ctx context.Context, id uint) (*domain.Product, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	return uc.Products.FindByID(ctx, id)
}

func (uc *ProductUC) Categories() []domain.Category {
	return domain.Categories
}

func (uc *ProductUC) Create(ctx context.Context, sess *domain.AdminSession, in CreateProductInput) (*domain.Product, error) {
	if !sess.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	var verr domain.ValidationError
	title := strings.TrimSpace(in.Title)
	if title == "" {
		verr.Add("titulo", "es obligatorio")
	}
	price, ok := parsePrice(in.Price, &verr)
	unit := domain.Unit(strings.TrimSpace(in.Unit))
	checkUnit(unit, &verr)
	cat := domain.Category(strings.TrimSpace(in.Category))
	checkCategory(cat, &verr)
	if !verr.Empty() || !ok {
		return nil, &verr
	}
	if !in.Primary.present() {
		return nil, domain.ErrMissingImage
	}

	p := &domain.Product{
		Title:          title,
		Price:          price,
		Unit:           unit,
		Category:       cat,
		Description:    strings.TrimSpace(in.Description),
		Fractionable:   in.Fractionable,
		DiscountActive: in.DiscountActive,
	}
	if in.DiscountActive {
		p.DiscountPercent = in.DiscountPercent
	}
	p.Normalize()
	if err := uc.Products.Create(ctx, p); err != nil {
		return nil, &domain.StoreWriteError{Op: "producto", Err: err}
	}

	var stored []string
	fail := func(err error) (*domain.Product, error) {
		if derr := uc.Products.Delete(ctx, p.ID); derr != nil {
			log.Ctx(ctx).Error().Err(derr).Uint("product_id", p.ID).Msg("no se pudo deshacer el alta")
		}
		uc.releaseBlobs(ctx, stored)
		return nil, err
	}

	ref, err := uc.Images.IngestMultipart(ctx, p.ID, PurposePrimary, in.Primary.Data, in.Primary.Filename)
	if err != nil {
		return fail(err)
	}
	stored = append(stored, ref.Path)
	p.PrimaryImage = ref.Path

	refs, err := uc.Images.IngestBase64Batch(ctx, uc.limitEntries(ctx, 0, in.Additional), p.ID, 0)
	for _, r := range refs {
		stored = append(stored, r.Path)
	}
	if err != nil {
		return fail(err)
	}
	p.AdditionalImages = domain.ImageList(refs)
	p.Normalize()
	if err := uc.Products.Save(ctx, p); err != nil {
		return fail(&domain.StoreWriteError{Op: "producto", Err: err})
	}
	log.Ctx(ctx).Info().Uint("product_id", p.ID).Str("admin", sess.User).Int("imagenes", 1+len(refs)).Msg("producto creado")
	return p, nil
}

func (uc *ProductUC) Update(ctx context.Context, sess *domain.AdminSession, id uint, in UpdateProductInput) (*domain.Product, error) {
	if !sess.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	p, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if verr := in.apply(p); !verr.Empty() {
		return nil, verr
	}

	var stored, released []string
	if in.Primary.present() {
		ref, err := uc.Images.IngestMultipart(ctx, p.ID, PurposePrimary, in.Primary.Data, in.Primary.Filename)
		if err != nil {
			return nil, err
		}
		stored = append(stored, ref.Path)
		if p.PrimaryImage != "" && p.PrimaryImage != ref.Path {
			released = append(released, p.PrimaryImage)
		}
		p.PrimaryImage = ref.Path
	}

	kept, dropped := p.AdditionalImages.Without(in.Keep)
	entries := uc.limitEntries(ctx, len(kept), in.Additional)
	refs, err := uc.Images.IngestBase64Batch(ctx, entries, p.ID, len(p.AdditionalImages))
	for _, r := range refs {
		stored = append(stored, r.Path)
	}
	if err != nil {
		uc.releaseBlobs(ctx, stored)
		return nil, err
	}
	p.AdditionalImages = append(kept, refs...)
	p.Normalize()
	if err := uc.Products.Save(ctx, p); err != nil {
		uc.releaseBlobs(ctx, stored)
		return nil, &domain.StoreWriteError{Op: "producto", Err: err}
	}
	for _, d := range dropped {
		released = append(released, d.Path)
	}
	uc.releaseBlobs(ctx, unreferenced(p, released))
	log.Ctx(ctx).Info().Uint("product_id", p.ID).Str("admin", sess.User).Int("descartadas", len(dropped)).Int("nuevas", len(refs)).Msg("producto actualizado")
	return p, nil
}

// Delete no informa errores: si el producto no existe o no se pudo borrar,
// para el panel la operación igual terminó.
func (uc *ProductUC) Delete(ctx context.Context, sess *domain.AdminSession, id uint) error {
	if !sess.Authenticated() {
		return domain.ErrUnauthorized
	}
	p, err := uc.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Ctx(ctx).Warn().Err(err).Uint("product_id", id).Msg("delete: no se pudo leer el producto")
		}
		return nil
	}
	if err := uc.Products.Delete(ctx, id); err != nil {
		log.Ctx(ctx).Warn().Err(err).Uint("product_id", id).Msg("delete: no se pudo borrar el producto")
		return nil
	}
	keys := []string{p.PrimaryImage}
	for _, r := range p.AdditionalImages {
		keys = append(keys, r.Path)
	}
	uc.releaseBlobs(ctx, keys)
	log.Ctx(ctx).Info().Uint("product_id", id).Str("admin", sess.User).Msg("producto eliminado")
	return nil
}

func (uc *ProductUC) limitEntries(ctx context.Context, existing int, entries []Base64Entry) []Base64Entry {
	if uc.MaxAdditionalImages <= 0 || len(entries) == 0 {
		return entries
	}
	remaining := uc.MaxAdditionalImages - existing
	if remaining <= 0 {
		log.Ctx(ctx).Warn().Int("max", uc.MaxAdditionalImages).Int("descartadas", len(entries)).Msg("límite de imágenes adicionales alcanzado")
		return nil
	}
	if len(entries) > remaining {
		log.Ctx(ctx).Warn().Int("max", uc.MaxAdditionalImages).Int("descartadas", len(entries)-remaining).Msg("límite de imágenes adicionales alcanzado")
		return entries[:remaining]
	}
	return entries
}

// unreferenced filtra las claves que el producto guardado sigue usando.
func unreferenced(p *domain.Product, keys []string) []string {
	inUse := map[string]bool{p.PrimaryImage: true}
	for _, r := range p.AdditionalImages {
		inUse[r.Path] = true
	}
	out := keys[:0]
	for _, k := range keys {
		if !inUse[k] {
			out = append(out, k)
		}
	}
	return out
}

// releaseBlobs borra archivos que ya no referencia ningún producto. Es best effort.
func (uc *ProductUC) releaseBlobs(ctx context.Context, keys []string) {
	if uc.Storage == nil {
		return
	}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		lk := strings.ToLower(k)
		if k == "" || strings.HasPrefix(lk, "http://") || strings.HasPrefix(lk, "https://") || strings.HasPrefix(k, "//") {
			continue
		}
		if err := uc.Storage.Remove(context.WithoutCancel(ctx), k); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("key", k).Msg("no se pudo borrar la imagen")
		}
	}
}

func (in UpdateProductInput) apply(p *domain.Product) *domain.ValidationError {
	var verr domain.ValidationError
	if in.Title != nil {
		if t := strings.TrimSpace(*in.Title); t == "" {
			verr.Add("titulo", "es obligatorio")
		} else {
			p.Title = t
		}
	}
	if in.Price != nil {
		if price, ok := parsePrice(*in.Price, &verr); ok {
			p.Price = price
		}
	}
	if in.Unit != nil {
		u := domain.Unit(strings.TrimSpace(*in.Unit))
		if checkUnit(u, &verr) {
			p.Unit = u
		}
	}
	if in.Category != nil {
		c := domain.Category(strings.TrimSpace(*in.Category))
		if checkCategory(c, &verr) {
			p.Category = c
		}
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Fractionable != nil {
		p.Fractionable = *in.Fractionable
	}
	if in.DiscountActive != nil {
		p.DiscountActive = *in.DiscountActive
	}
	if in.DiscountPercent != nil {
		p.DiscountPercent = domain.ClampDiscountPercent(*in.DiscountPercent)
	}
	if verr.Empty() {
		return nil
	}
	return &verr
}

func parsePrice(raw string, verr *domain.ValidationError) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		verr.Add("precio", "es obligatorio")
		return decimal.Zero, false
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		verr.Add("precio", "no es un número válido")
		return decimal.Zero, false
	}
	switch {
	case d.IsNegative():
		verr.Add("precio", "no puede ser negativo")
	case !d.Equal(d.Round(2)):
		verr.Add("precio", "admite hasta 2 decimales")
	case d.GreaterThan(maxPrice):
		verr.Add("precio", "es demasiado alto")
	default:
		return d, true
	}
	return decimal.Zero, false
}

func checkUnit(u domain.Unit, verr *domain.ValidationError) bool {
	switch {
	case u == "":
		verr.Add("unidad", "es obligatoria")
	case !u.Valid():
		verr.Add("unidad", "no es válida")
	default:
		return true
	}
	return false
}

func checkCategory(c domain.Category, verr *domain.ValidationError) bool {
	switch {
	case c == "":
		verr.Add("categoria", "es obligatoria")
	case !c.Valid():
		verr.Add("categoria", "no es válida")
	default:
		return true
	}
	return false
}
