package httpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/phenrril/naturalhome/internal/adapters/repo/postgres"
	"github.com/phenrril/naturalhome/internal/adapters/storage/localfs"
	"github.com/phenrril/naturalhome/internal/domain"
	"github.com/phenrril/naturalhome/internal/usecase"
)

const (
	testAdminUser = "admin"
	testAdminPass = "verdura123"
)

type testEnv struct {
	srv     *Server
	repo    *postgres.ProductRepo
	storage *localfs.Storage
	uc      *usecase.ProductUC
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Product{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	storage := localfs.New(t.TempDir())
	repo := postgres.NewProductRepo(db)
	uc := &usecase.ProductUC{
		Products:            repo,
		Images:              usecase.NewImageIngestor(storage),
		Storage:             storage,
		MaxAdditionalImages: 5,
	}

	opts := Options{
		BaseURL:            "http://tienda.test",
		MediaURL:           "/media/",
		StorageDir:         storage.Root,
		PlaceholderImage:   "/static/img/placeholder.png",
		WhatsAppNumber:     "+54 9 341 555-0000",
		SessionKey:         "clave-de-prueba-para-sesiones-32b",
		AdminUser:          testAdminUser,
		AdminPass:          testAdminPass,
		AdminAllowedEmails: []string{"ana@example.com"},
		MaxUploadMB:        5,
		MaxAdditional:      5,
	}
	if mutate != nil {
		mutate(&opts)
	}
	tmpl, err := ParseTemplates(domain.MediaBase{Prefix: opts.MediaURL})
	require.NoError(t, err)

	return &testEnv{srv: New(tmpl, uc, nil, opts), repo: repo, storage: storage, uc: uc}
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func (e *testEnv) login(t *testing.T) []*http.Cookie {
	t.Helper()
	form := url.Values{"usuario": {testAdminUser}, "password": {testAdminPass}}
	req := httptest.NewRequest(http.MethodPost, "/admin/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := e.do(req)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/admin/productos/", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

// seed crea un producto por el catálogo, con imagen principal y adicionales.
func (e *testEnv) seed(t *testing.T, title string, cat domain.Category, price string, discount int, additional int) *domain.Product {
	t.Helper()
	in := usecase.CreateProductInput{
		Title:           title,
		Price:           price,
		Unit:            string(domain.UnitKg),
		Category:        string(cat),
		DiscountActive:  discount > 0,
		DiscountPercent: discount,
		Primary:         &usecase.Upload{Data: pngBytes(t), Filename: "foto.png"},
	}
	for i := 0; i < additional; i++ {
		in.Additional = append(in.Additional, usecase.Base64Entry{Payload: dataURL(t), Filename: fmt.Sprintf("extra%d.png", i)})
	}
	p, err := e.uc.Create(context.Background(), &domain.AdminSession{User: testAdminUser}, in)
	require.NoError(t, err)
	return p
}

type filePart struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, path string, fields url.Values, files map[string]filePart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	for field, f := range files {
		fw, err := mw.CreateFormFile(field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dataURL(t *testing.T) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))
}

func document(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	return doc
}

func texts(sel *goquery.Selection) []string {
	out := []string{}
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}
