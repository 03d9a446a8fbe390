package httpserver

import (
	"encoding/json"
	"html/template"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/phenrril/naturalhome/internal/domain"
	"github.com/phenrril/naturalhome/internal/usecase"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// Options es lo que el servidor necesita de la configuración.
type Options struct {
	BaseURL          string
	MediaURL         string
	StorageDir       string
	StaticDir        string
	PlaceholderImage string
	WhatsAppNumber   string

	SessionKey         string
	SecureCookies      bool
	AdminUser          string
	AdminPass          string
	AdminAllowedEmails []string

	MaxUploadMB   int
	MaxAdditional int
}

type Server struct {
	router   *chi.Mux
	tmpl     *template.Template
	products *usecase.ProductUC
	sessions sessions.Store
	oauthCfg *oauth2.Config
	media    domain.MediaBase
	opts     Options

	adminAllowed map[string]struct{}
	userInfoURL  string
}

func New(t *template.Template, p *usecase.ProductUC, oauthCfg *oauth2.Config, opts Options) *Server {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 25
	}
	store := sessions.NewCookieStore([]byte(opts.SessionKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((12 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		router:      chi.NewRouter(),
		tmpl:        t,
		products:    p,
		sessions:    store,
		oauthCfg:    oauthCfg,
		media:       domain.MediaBase{Prefix: opts.MediaURL},
		opts:        opts,
		userInfoURL: googleUserInfoURL,
	}
	allowed := map[string]struct{}{}
	for _, e := range opts.AdminAllowedEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			allowed[e] = struct{}{}
		}
	}
	s.adminAllowed = allowed

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log.Logger)...)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.NotFound(s.appendSlash)

	if prefix, ok := s.mediaRoute(); ok {
		r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(filesOnly{http.Dir(s.opts.StorageDir)})))
	}
	if s.opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(filesOnly{http.Dir(s.opts.StaticDir)})))
	}

	r.Get("/", s.handleHome)
	r.Get("/api/producto/{id}/", s.apiProduct)
	r.Get("/producto/{id}/", s.handleProduct)

	r.Get("/carrito/", s.handleCart)
	r.Post("/carrito/agregar/", s.handleCartAdd)
	r.Post("/carrito/actualizar/", s.handleCartUpdate)
	r.Post("/carrito/quitar/", s.handleCartRemove)
	r.Post("/carrito/pedido/", s.handleCartCheckout)

	r.Get("/admin/", s.handleAdminLoginForm)
	r.Post("/admin/", s.handleAdminLogin)
	r.Get("/admin/logout/", s.handleAdminLogout)
	r.Get("/admin/google/login/", s.handleGoogleLogin)
	r.Get("/admin/google/callback/", s.handleGoogleCallback)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/admin/productos/", s.handleAdminProducts)
		r.Get("/admin/productos/nuevo/", s.handleAdminNewForm)
		r.Post("/admin/productos/nuevo/", s.handleAdminCreate)
		r.Get("/admin/productos/exportar/", s.handleAdminExport)
		r.Get("/admin/productos/{id}/editar/", s.handleAdminEditForm)
		r.Post("/admin/productos/{id}/editar/", s.handleAdminUpdate)
		r.Post("/admin/productos/{id}/eliminar/", s.handleAdminDelete)
	})
}

// mediaRoute es el prefijo local desde el que se sirven las imágenes; con un
// MEDIA_URL absoluto (CDN) no se sirve nada.
func (s *Server) mediaRoute() (string, bool) {
	prefix := s.media.Prefix
	if prefix == "" {
		prefix = domain.DefaultMediaPrefix
	}
	if s.opts.StorageDir == "" || strings.Contains(prefix, "://") || strings.HasPrefix(prefix, "//") {
		return "", false
	}
	return "/" + strings.Trim(prefix, "/") + "/", true
}

// filesOnly no expone directorios: sin esto FileServer lista su contenido.
type filesOnly struct{ fs http.FileSystem }

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := file.Stat()
	if err != nil || st.IsDir() {
		_ = file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

// appendSlash redirige /admin/productos a /admin/productos/ cuando esa ruta existe.
func (s *Server) appendSlash(w http.ResponseWriter, r *http.Request) {
	if p := r.URL.Path; !strings.HasSuffix(p, "/") && s.router.Match(chi.NewRouteContext(), r.Method, p+"/") {
		target := p + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}
	if _, exists := data["Title"]; !exists {
		data["Title"] = ""
	}
	data["WhatsAppNumber"] = s.opts.WhatsAppNumber
	if _, exists := data["CartCount"]; !exists {
		data["CartCount"] = s.readCart(r).Count()
	}
	if _, exists := data["Admin"]; !exists {
		if sess := adminFrom(r.Context()); sess != nil {
			data["Admin"] = sess
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("tpl", name).Msg("render")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// canonicalBase arma el origen absoluto para las URLs de la API.
func (s *Server) canonicalBase(r *http.Request) string {
	if b := strings.TrimRight(s.opts.BaseURL, "/"); b != "" {
		return b
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) absoluteURL(r *http.Request, u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return s.canonicalBase(r) + u
}
