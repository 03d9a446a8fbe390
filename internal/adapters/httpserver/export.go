package httpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/naturalhome/internal/domain"
)

const (
	exportSheet    = "Productos"
	exportPageSize = 200
)

var exportHeader = []interface{}{
	"ID", "Título", "Categoría", "Unidad", "Precio", "Descuento activo", "% descuento",
	"Precio final", "Fraccionado", "Imágenes", "Imagen principal", "Creado",
}

func (s *Server) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("productos_%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	if err := s.writeCatalogXLSX(r.Context(), r, w); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("exportar catálogo")
		w.Header().Del("Content-Disposition")
		http.Error(w, "no se pudo exportar", http.StatusInternalServerError)
	}
}

// writeCatalogXLSX recorre el catálogo completo en páginas y lo vuelca a una hoja.
func (s *Server) writeCatalogXLSX(ctx context.Context, r *http.Request, out io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}
	_ = f.SetColWidth(exportSheet, "B", "B", 32)
	_ = f.SetColWidth(exportSheet, "K", "K", 48)

	row := 2
	for page := 1; ; page++ {
		res, err := s.products.List(ctx, domain.ProductFilter{Scope: domain.ScopeAdmin, Page: page, PageSize: exportPageSize})
		if err != nil {
			return err
		}
		// List devuelve la última página cuando se pide una que no existe
		if res.Page != page {
			break
		}
		for i := range res.Products {
			p := &res.Products[i]
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(exportSheet, cell, &[]interface{}{
				p.ID,
				p.Title,
				p.Category.Label(),
				p.Unit.Label(),
				p.Price.InexactFloat64(),
				siNo(p.DiscountActive),
				p.DiscountPercent,
				p.EffectivePrice().InexactFloat64(),
				siNo(p.Fractionable),
				len(domain.AllImages(p, s.media)),
				s.primaryImageURL(r, p),
				p.CreatedAt.Format("2006-01-02 15:04"),
			}); err != nil {
				return err
			}
			row++
		}
		if !res.HasNext() {
			break
		}
	}
	return f.Write(out)
}

func (s *Server) primaryImageURL(r *http.Request, p *domain.Product) string {
	u, ok := s.media.ResolveURL(p.PrimaryImage)
	if !ok {
		return ""
	}
	return s.absoluteURL(r, u)
}

func siNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
