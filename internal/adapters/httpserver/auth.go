package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/phenrril/naturalhome/internal/domain"
)

const (
	sessionName = "naturalhome_admin"

	keyUser       = "user"
	keyProvider   = "provider"
	keyStarted    = "started"
	keyOAuthState = "oauth_state"

	providerPassword = "password"
	providerGoogle   = "google"
)

type ctxKey int

const adminCtxKey ctxKey = iota

func adminFrom(ctx context.Context) *domain.AdminSession {
	sess, _ := ctx.Value(adminCtxKey).(*domain.AdminSession)
	return sess
}

func (s *Server) session(r *http.Request) *sessions.Session {
	sess, err := s.sessions.Get(r, sessionName)
	if err != nil {
		// cookie vencida o firmada con otra clave: se arranca una sesión nueva
		log.Ctx(r.Context()).Debug().Err(err).Msg("sesión inválida")
	}
	return sess
}

// adminSession lee la sesión del panel; nil si no hay nadie logueado.
func (s *Server) adminSession(r *http.Request) *domain.AdminSession {
	sess := s.session(r)
	user, _ := sess.Values[keyUser].(string)
	if strings.TrimSpace(user) == "" {
		return nil
	}
	provider, _ := sess.Values[keyProvider].(string)
	started, _ := sess.Values[keyStarted].(int64)
	return &domain.AdminSession{User: user, Provider: provider, StartedAt: time.Unix(started, 0)}
}

func (s *Server) startAdminSession(w http.ResponseWriter, r *http.Request, user, provider string) error {
	sess := s.session(r)
	delete(sess.Values, keyOAuthState)
	sess.Values[keyUser] = user
	sess.Values[keyProvider] = provider
	sess.Values[keyStarted] = time.Now().Unix()
	return sess.Save(r, w)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin := s.adminSession(r)
		if !admin.Authenticated() {
			http.Redirect(w, r, "/admin/", http.StatusFound)
			return
		}
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("admin", admin.User)
		})
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminCtxKey, admin)))
	})
}

func (s *Server) loginData(errMsg, user string) map[string]any {
	return map[string]any{
		"Title":         "Ingresar",
		"Error":         errMsg,
		"User":          user,
		"GoogleEnabled": s.oauthCfg != nil,
	}
}

func (s *Server) handleAdminLoginForm(w http.ResponseWriter, r *http.Request) {
	if s.adminSession(r).Authenticated() {
		http.Redirect(w, r, "/admin/productos/", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, "admin_login.html", s.loginData("", ""))
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "admin_login.html", s.loginData("Formulario inválido", ""))
		return
	}
	user := strings.TrimSpace(r.PostFormValue("usuario"))
	pass := r.PostFormValue("password")
	if s.opts.AdminUser == "" || !secureCompare(user, s.opts.AdminUser) || !secureCompare(pass, s.opts.AdminPass) {
		log.Ctx(r.Context()).Warn().Str("usuario", user).Msg("login de admin rechazado")
		s.render(w, r, http.StatusUnauthorized, "admin_login.html", s.loginData("Usuario o contraseña incorrectos", user))
		return
	}
	if err := s.startAdminSession(w, r, user, providerPassword); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("guardar sesión")
		http.Error(w, "sesión", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/productos/", http.StatusFound)
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("cerrar sesión")
	}
	http.Redirect(w, r, "/admin/", http.StatusFound)
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil {
		http.NotFound(w, r)
		return
	}
	state := uuid.NewString()
	sess := s.session(r)
	sess.Values[keyOAuthState] = state
	if err := sess.Save(r, w); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("guardar estado oauth")
		http.Error(w, "sesión", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, s.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOnline), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	sess := s.session(r)
	want, _ := sess.Values[keyOAuthState].(string)
	if want == "" || !secureCompare(q.Get("state"), want) {
		http.Error(w, "state", http.StatusBadRequest)
		return
	}
	tok, err := s.oauthCfg.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("exchange oauth")
		http.Error(w, "oauth", http.StatusBadRequest)
		return
	}
	email, err := s.fetchGoogleEmail(r.Context(), tok)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("userinfo")
		http.Error(w, "userinfo", http.StatusBadRequest)
		return
	}
	if _, ok := s.adminAllowed[email]; !ok {
		log.Ctx(r.Context()).Warn().Str("email", email).Msg("email sin permiso de admin")
		s.render(w, r, http.StatusForbidden, "admin_login.html", s.loginData("Esa cuenta no tiene acceso al panel", ""))
		return
	}
	if err := s.startAdminSession(w, r, email, providerGoogle); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("guardar sesión")
		http.Error(w, "sesión", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/productos/", http.StatusFound)
}

func (s *Server) fetchGoogleEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	resp, err := s.oauthCfg.Client(ctx, tok).Get(s.userInfoURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var info struct {
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", err
	}
	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" || (info.EmailVerified != nil && !*info.EmailVerified) {
		return "", errUnverifiedEmail
	}
	return email, nil
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
