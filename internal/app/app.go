package app

import (
	"html/template"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/phenrril/naturalhome/internal/adapters/httpserver"
	"github.com/phenrril/naturalhome/internal/adapters/repo/postgres"
	"github.com/phenrril/naturalhome/internal/adapters/storage/localfs"
	"github.com/phenrril/naturalhome/internal/config"
	"github.com/phenrril/naturalhome/internal/domain"
	"github.com/phenrril/naturalhome/internal/usecase"
)

const viewsDir = "internal/views"

type App struct {
	Config      config.Config
	DB          *gorm.DB
	Tmpl        *template.Template
	ProductUC   *usecase.ProductUC
	Storage     domain.FileStorage
	OAuthConfig *oauth2.Config
}

func NewApp(cfg config.Config, db *gorm.DB) (*App, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return nil, err
	}
	storage := localfs.New(cfg.StorageDir)
	prodRepo := postgres.NewProductRepo(db)

	var oauthCfg *oauth2.Config
	if cfg.GoogleLoginEnabled() {
		oauthCfg = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.BaseURL + "/admin/google/callback/",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}

	app := &App{Config: cfg, DB: db, Storage: storage, OAuthConfig: oauthCfg}
	app.ProductUC = &usecase.ProductUC{
		Products:            prodRepo,
		Images:              usecase.NewImageIngestor(storage),
		Storage:             storage,
		MaxAdditionalImages: cfg.MaxAdditionalImages,
	}

	media := domain.MediaBase{Prefix: cfg.MediaURL}
	var tmpl *template.Template
	var err error
	// en desarrollo las vistas se leen del disco para no recompilar al editarlas
	if st, statErr := os.Stat(viewsDir); !cfg.IsProduction() && statErr == nil && st.IsDir() {
		tmpl, err = template.New("layout").Funcs(httpserver.FuncMap(media)).ParseGlob(viewsDir + "/*.html")
	} else {
		tmpl, err = httpserver.ParseTemplates(media)
	}
	if err != nil {
		return nil, err
	}
	app.Tmpl = tmpl

	return app, nil
}

func (a *App) HTTPHandler() http.Handler {
	cfg := a.Config
	return httpserver.New(a.Tmpl, a.ProductUC, a.OAuthConfig, httpserver.Options{
		BaseURL:            cfg.BaseURL,
		MediaURL:           cfg.MediaURL,
		StorageDir:         cfg.StorageDir,
		StaticDir:          cfg.StaticDir,
		PlaceholderImage:   cfg.PlaceholderImage,
		WhatsAppNumber:     cfg.WhatsAppNumber,
		SessionKey:         cfg.SessionKey,
		SecureCookies:      strings.HasPrefix(cfg.BaseURL, "https://"),
		AdminUser:          cfg.AdminUser,
		AdminPass:          cfg.AdminPass,
		AdminAllowedEmails: cfg.AdminAllowedEmails,
		MaxUploadMB:        cfg.MaxUploadMB,
		MaxAdditional:      cfg.MaxAdditionalImages,
	})
}

// Migrate crea o actualiza la tabla de productos y normaliza filas viejas.
func (a *App) Migrate() error {
	if err := a.DB.AutoMigrate(&domain.Product{}); err != nil {
		return err
	}
	if err := a.DB.Exec("UPDATE products SET additional_images = '[]' WHERE additional_images IS NULL OR additional_images = ''").Error; err != nil {
		return err
	}
	if err := a.DB.Exec("UPDATE products SET discount_percent = 0 WHERE discount_percent < 0").Error; err != nil {
		return err
	}
	return a.DB.Exec("UPDATE products SET discount_percent = 100 WHERE discount_percent > 100").Error
}
