package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/naturalhome/internal/domain"
)

const (
	cartSessionName = "naturalhome_carrito"
	keyCartItems    = "items"
	cartMaxAge      = 7 * 24 * time.Hour
)

func (s *Server) cartSession(r *http.Request) *sessions.Session {
	sess, err := s.sessions.Get(r, cartSessionName)
	if err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("carrito inválido")
	}
	return sess
}

func (s *Server) readCart(r *http.Request) domain.Cart {
	var c domain.Cart
	raw, _ := s.cartSession(r).Values[keyCartItems].(string)
	if raw == "" {
		return c
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("carrito ilegible")
		return domain.Cart{}
	}
	return c
}

func (s *Server) writeCart(w http.ResponseWriter, r *http.Request, c domain.Cart) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	sess := s.cartSession(r)
	sess.Values[keyCartItems] = string(b)
	sess.Options.MaxAge = int(cartMaxAge.Seconds())
	return sess.Save(r, w)
}

// cartLines lee cada producto del catálogo; los que ya no existen se quitan del carrito.
func (s *Server) cartLines(ctx context.Context, c *domain.Cart) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(c.Items))
	var gone []uint
	for _, it := range c.Items {
		p, err := s.products.Get(ctx, it.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			gone = append(gone, it.ProductID)
			continue
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.CartLine{Product: *p, Qty: it.Qty})
	}
	for _, id := range gone {
		c.Remove(id)
	}
	return lines, nil
}

func formID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(r.PostFormValue("id")), 10, 64)
	return uint(id), err == nil && id > 0
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	images := domain.AllImages(p, s.media)
	if len(images) == 0 && s.opts.PlaceholderImage != "" {
		images = []domain.ImageView{{URL: s.opts.PlaceholderImage, Kind: domain.ImageKindPrimary, Name: p.Title}}
	}
	s.render(w, r, http.StatusOK, "product.html", map[string]any{
		"Title":      p.Title,
		"Product":    p,
		"Images":     images,
		"ByWeight":   domain.SoldByWeight(p),
		"DefaultQty": domain.DefaultQty(p),
		"QtyStep":    domain.QtyStep(p),
	})
}

func (s *Server) renderCart(w http.ResponseWriter, r *http.Request, status int, c domain.Cart, contact domain.OrderContact, errMsg string, fields map[string]string) {
	lines, err := s.cartLines(r.Context(), &c)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("leer carrito")
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if contact.Payment == "" {
		contact.Payment = domain.PaymentCash
	}
	s.render(w, r, status, "cart.html", map[string]any{
		"Title":     "Carrito",
		"Lines":     lines,
		"Total":     domain.CartTotal(lines),
		"Contact":   contact,
		"Error":     errMsg,
		"Fields":    fields,
		"CartCount": len(lines),
	})
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	s.renderCart(w, r, http.StatusOK, s.readCart(r), domain.OrderContact{}, "", nil)
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "form", http.StatusBadRequest)
		return
	}
	id, ok := formID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	p, err := s.products.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Uint("product_id", id).Msg("agregar al carrito")
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	qty, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("cantidad")))
	if err != nil || qty <= 0 {
		qty = domain.DefaultQty(p)
	}
	c := s.readCart(r)
	c.Add(p.ID, qty)
	s.saveCartAndReturn(w, r, c)
}

// handleCartUpdate acepta op=inc|dec|set; inc y dec usan el paso del producto.
func (s *Server) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "form", http.StatusBadRequest)
		return
	}
	id, ok := formID(r)
	if !ok {
		http.Redirect(w, r, "/carrito/", http.StatusFound)
		return
	}
	c := s.readCart(r)
	p, err := s.products.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Ctx(r.Context()).Error().Err(err).Uint("product_id", id).Msg("actualizar carrito")
			http.Error(w, "error", http.StatusInternalServerError)
			return
		}
		c.Remove(id)
		s.saveCartAndReturn(w, r, c)
		return
	}
	cur := c.Qty(id)
	switch r.PostFormValue("op") {
	case "inc":
		cur += domain.QtyStep(p)
	case "dec":
		cur -= domain.QtyStep(p)
	case "set":
		if q, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("cantidad"))); err == nil {
			cur = q
		}
	}
	c.Set(id, cur)
	s.saveCartAndReturn(w, r, c)
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "form", http.StatusBadRequest)
		return
	}
	c := s.readCart(r)
	if id, ok := formID(r); ok {
		c.Remove(id)
	}
	s.saveCartAndReturn(w, r, c)
}

func (s *Server) saveCartAndReturn(w http.ResponseWriter, r *http.Request, c domain.Cart) {
	if err := s.writeCart(w, r, c); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("guardar carrito")
		http.Error(w, "carrito", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/carrito/", http.StatusFound)
}

// handleCartCheckout arma el mensaje del pedido, vacía el carrito y redirige a WhatsApp.
func (s *Server) handleCartCheckout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "form", http.StatusBadRequest)
		return
	}
	contact := domain.OrderContact{
		Name:    r.PostFormValue("nombre"),
		Phone:   r.PostFormValue("telefono"),
		Address: r.PostFormValue("direccion"),
		Notes:   r.PostFormValue("observaciones"),
		Payment: domain.PaymentMethod(strings.TrimSpace(r.PostFormValue("metodo_pago"))),
	}
	c := s.readCart(r)
	lines, err := s.cartLines(r.Context(), &c)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("leer carrito")
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if len(lines) == 0 {
		s.renderCart(w, r, http.StatusBadRequest, c, contact, "Tu carrito está vacío", nil)
		return
	}
	if verr := contact.Validate(); verr != nil {
		s.renderCart(w, r, http.StatusBadRequest, c, contact, "Completá los datos del pedido", verr.Fields)
		return
	}
	if strings.TrimSpace(s.opts.WhatsAppNumber) == "" {
		log.Ctx(r.Context()).Error().Msg("pedido sin WHATSAPP_NUMBER configurado")
		s.renderCart(w, r, http.StatusServiceUnavailable, c, contact, "No hay un número de WhatsApp configurado", nil)
		return
	}

	link := whatsAppURL(s.opts.WhatsAppNumber, domain.OrderMessage(lines, contact, time.Now()))
	if err := s.writeCart(w, r, domain.Cart{}); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("vaciar carrito")
	}
	log.Ctx(r.Context()).Info().Int("renglones", len(lines)).Str("total", domain.CartTotal(lines).StringFixed(2)).Msg("pedido enviado a WhatsApp")
	http.Redirect(w, r, link, http.StatusSeeOther)
}
