package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phenrril/naturalhome/internal/domain"
)

// carry devuelve las cookies del request anterior actualizadas con las de la respuesta.
func carry(jar []*http.Cookie, rec *httptest.ResponseRecorder) []*http.Cookie {
	byName := map[string]*http.Cookie{}
	var order []string
	for _, c := range append(jar, rec.Result().Cookies()...) {
		if _, ok := byName[c.Name]; !ok {
			order = append(order, c.Name)
		}
		byName[c.Name] = c
	}
	out := make([]*http.Cookie, 0, len(order))
	for _, n := range order {
		out = append(out, byName[n])
	}
	return out
}

func (e *testEnv) post(t *testing.T, jar []*http.Cookie, path string, form url.Values) (*httptest.ResponseRecorder, []*http.Cookie) {
	t.Helper()
	rec := e.do(httpForm(http.MethodPost, path, form), jar...)
	return rec, carry(jar, rec)
}

func (e *testEnv) seedByWeight(t *testing.T, title, price string) *domain.Product {
	t.Helper()
	p := e.seed(t, title, domain.CategoryVegetables, price, 0, 0)
	p.Fractionable = true
	require.NoError(t, e.repo.Save(context.Background(), p))
	return p
}

func idOf(p *domain.Product) string { return fmt.Sprint(p.ID) }

func TestProductPage_Gallery(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.seed(t, "Kiwi", domain.CategoryFruits, "100", 0, 2)

	rec := env.get(fmt.Sprintf("/producto/%d/", p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	doc := document(t, rec)

	require.Equal(t, "Kiwi", strings.TrimSpace(doc.Find(".product-detail .title").Text()))
	imgs := doc.Find(".gallery img")
	require.Equal(t, 3, imgs.Length())
	src, _ := imgs.First().Attr("src")
	require.Equal(t, "/media/"+p.PrimaryImage, src)
	require.True(t, imgs.First().HasClass("main"))
	for i, ref := range p.AdditionalImages {
		src, _ := imgs.Eq(i + 1).Attr("src")
		require.Equal(t, "/media/"+ref.Path, src)
		alt, _ := imgs.Eq(i + 1).Attr("alt")
		require.Equal(t, ref.Filename, alt)
	}
	qty, _ := doc.Find(`.add-cart input[name="cantidad"]`).Attr("value")
	require.Equal(t, "1", qty)

	home := document(t, env.get("/"))
	href, _ := home.Find(".product .title a").Attr("href")
	require.Equal(t, fmt.Sprintf("/producto/%d/", p.ID), href)
}

func TestProductPage_ByWeightAndPlaceholder(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.seedByWeight(t, "Lechuga", "350")
	p.PrimaryImage = ""
	require.NoError(t, env.repo.Save(context.Background(), p))

	doc := document(t, env.get(fmt.Sprintf("/producto/%d/", p.ID)))

	src, _ := doc.Find(".gallery img").Attr("src")
	require.Equal(t, "/static/img/placeholder.png", src)
	input := doc.Find(`.add-cart input[name="cantidad"]`)
	v, _ := input.Attr("value")
	step, _ := input.Attr("step")
	require.Equal(t, "1000", v)
	require.Equal(t, "250", step)

	require.Equal(t, http.StatusNotFound, env.get("/producto/999/").Code)
}

func TestCart_CheckoutSendsOrderToWhatsApp(t *testing.T) {
	env := newTestEnv(t, nil)
	manzana := env.seed(t, "Manzana", domain.CategoryFruits, "1000", 10, 0)
	lechuga := env.seedByWeight(t, "Lechuga", "350")

	var jar []*http.Cookie
	rec, jar := env.post(t, jar, "/carrito/agregar/", url.Values{"id": {idOf(manzana)}})
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/carrito/", rec.Header().Get("Location"))
	_, jar = env.post(t, jar, "/carrito/agregar/", url.Values{"id": {idOf(manzana)}})
	_, jar = env.post(t, jar, "/carrito/agregar/", url.Values{"id": {idOf(lechuga)}, "cantidad": {"500"}})

	doc := document(t, env.get("/carrito/", jar...))
	require.Equal(t, []string{"Manzana", "Lechuga"}, texts(doc.Find(".cart-line .title")))
	require.Equal(t, []string{"2 kg", "500 g"}, texts(doc.Find(".cart-line .qty span")))
	require.Equal(t, []string{"$ 1.800,00", "$ 175,00"}, texts(doc.Find(".cart-line .subtotal")))
	require.Equal(t, "$ 1.975,00", strings.TrimSpace(doc.Find(".cart-total strong").Text()))
	require.Equal(t, "Carrito (2)", strings.TrimSpace(doc.Find(".cart-link").Text()))

	rec, jar = env.post(t, jar, "/carrito/pedido/", url.Values{
		"nombre":        {"Ana"},
		"telefono":      {"341 555-0000"},
		"direccion":     {"San Martín 123"},
		"observaciones": {"Timbre 2"},
		"metodo_pago":   {"transferencia"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "wa.me", loc.Host)
	require.Equal(t, "/5493415550000", loc.Path)
	text := loc.Query().Get("text")
	require.Contains(t, text, "*Cliente:* Ana\n")
	require.Contains(t, text, "1. Manzana - 2 kg - $1800.00\n2. Lechuga - 500 g - $175.00\n")
	require.Contains(t, text, "*TOTAL:* $1975.00\n")
	require.Contains(t, text, "*Pago:* Transferencia Bancaria")

	doc = document(t, env.get("/carrito/", jar...))
	require.Equal(t, 1, doc.Find(".cart .empty").Length())
	require.Equal(t, "Carrito (0)", strings.TrimSpace(doc.Find(".cart-link").Text()))
}

func TestCart_UpdateStepsAndRemove(t *testing.T) {
	env := newTestEnv(t, nil)
	lechuga := env.seedByWeight(t, "Lechuga", "350")

	_, jar := env.post(t, nil, "/carrito/agregar/", url.Values{"id": {idOf(lechuga)}})
	_, jar = env.post(t, jar, "/carrito/actualizar/", url.Values{"id": {idOf(lechuga)}, "op": {"inc"}})
	require.Equal(t, []string{"1.25 kg"}, texts(document(t, env.get("/carrito/", jar...)).Find(".cart-line .qty span")))

	_, jar = env.post(t, jar, "/carrito/actualizar/", url.Values{"id": {idOf(lechuga)}, "op": {"dec"}})
	_, jar = env.post(t, jar, "/carrito/actualizar/", url.Values{"id": {idOf(lechuga)}, "op": {"dec"}})
	require.Equal(t, []string{"750 g"}, texts(document(t, env.get("/carrito/", jar...)).Find(".cart-line .qty span")))

	_, jar = env.post(t, jar, "/carrito/quitar/", url.Values{"id": {idOf(lechuga)}})
	require.Equal(t, 1, document(t, env.get("/carrito/", jar...)).Find(".cart .empty").Length())
}

func TestCart_DropsDeletedProducts(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.seed(t, "Pera", domain.CategoryFruits, "500", 0, 0)

	_, jar := env.post(t, nil, "/carrito/agregar/", url.Values{"id": {idOf(p)}})
	require.NoError(t, env.repo.Delete(context.Background(), p.ID))

	doc := document(t, env.get("/carrito/", jar...))
	require.Equal(t, 1, doc.Find(".cart .empty").Length())

	rec, _ := env.post(t, nil, "/carrito/agregar/", url.Values{"id": {"999"}})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCart_CheckoutValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.seed(t, "Pera", domain.CategoryFruits, "500", 0, 0)

	rec, _ := env.post(t, nil, "/carrito/pedido/", url.Values{"nombre": {"Ana"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Tu carrito está vacío", strings.TrimSpace(document(t, rec).Find(".cart .error").Text()))

	_, jar := env.post(t, nil, "/carrito/agregar/", url.Values{"id": {idOf(p)}})
	rec, _ = env.post(t, jar, "/carrito/pedido/", url.Values{"nombre": {"Ana"}, "telefono": {"123"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	doc := document(t, rec)
	require.Equal(t, 1, doc.Find(`.field-error[data-field="direccion"]`).Length())
	require.Equal(t, "no es un teléfono válido", strings.TrimSpace(doc.Find(`.field-error[data-field="telefono"]`).Text()))
	name, _ := doc.Find(`.checkout input[name="nombre"]`).Attr("value")
	require.Equal(t, "Ana", name)
	require.Equal(t, []string{"Pera"}, texts(doc.Find(".cart-line .title")))
}

func TestCart_CheckoutWithoutWhatsAppNumber(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.WhatsAppNumber = "" })
	p := env.seed(t, "Pera", domain.CategoryFruits, "500", 0, 0)

	_, jar := env.post(t, nil, "/carrito/agregar/", url.Values{"id": {idOf(p)}})
	rec, _ := env.post(t, jar, "/carrito/pedido/", url.Values{
		"nombre": {"Ana"}, "telefono": {"3415550000"}, "direccion": {"Mitre 1"},
	})

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, []string{"Pera"}, texts(document(t, env.get("/carrito/", jar...)).Find(".cart-line .title")))
}
