package httpserver

import (
	"html/template"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/phenrril/naturalhome/internal/domain"
	"github.com/phenrril/naturalhome/internal/views"
)

// FuncMap son las funciones disponibles en las vistas.
func FuncMap(media domain.MediaBase) template.FuncMap {
	return template.FuncMap{
		"add":   func(a, b int) int { return a + b },
		"sub":   func(a, b int) int { return a - b },
		"money": formatMoney,
		"finalPrice": func(p domain.Product) string {
			return formatMoney(p.EffectivePrice())
		},
		"mediaURL": func(key string) string {
			u, _ := media.ResolveURL(key)
			return u
		},
		"primaryImage": func(p domain.Product) string {
			u, _ := media.ResolveURL(p.PrimaryImage)
			return u
		},
		"imgs": func(p domain.Product) []domain.ImageView {
			return domain.AllImages(&p, media)
		},
		"whatsapp": whatsAppLink,
		"pageURL":  pageURL,
	}
}

// ParseTemplates compila las vistas embebidas.
func ParseTemplates(media domain.MediaBase) (*template.Template, error) {
	return template.New("layout").Funcs(FuncMap(media)).ParseFS(views.FS, "*.html")
}

// formatMoney usa el formato local: "$ 1.234,50".
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac := s, "00"
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i+1:]
	}
	n := len(intPart)
	rem := n % 3
	if rem == 0 {
		rem = 3
	}
	out := intPart[:rem]
	for i := rem; i < n; i += 3 {
		out += "." + intPart[i:i+3]
	}
	if neg {
		out = "-" + out
	}
	return "$ " + out + "," + frac
}

func whatsAppLink(number, title string) string {
	if title = strings.TrimSpace(title); title != "" {
		return whatsAppURL(number, "Hola! Quiero pedir: "+title)
	}
	return whatsAppURL(number, "")
}

// whatsAppURL arma el link wa.me con el número solo en dígitos y el texto precargado.
func whatsAppURL(number, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	link := "https://wa.me/" + digits
	if text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link
}

func pageURL(base, query, category string, page int) string {
	v := url.Values{}
	if query != "" {
		v.Set("q", query)
	}
	if category != "" {
		v.Set("categoria", category)
	}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	if len(v) == 0 {
		return base
	}
	return base + "?" + v.Encode()
}
