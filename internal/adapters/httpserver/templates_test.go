package httpserver

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$ 0,00"},
		{"900", "$ 900,00"},
		{"1000", "$ 1.000,00"},
		{"1234567.5", "$ 1.234.567,50"},
		{"99.999", "$ 100,00"},
		{"-1500.25", "$ -1.500,25"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, formatMoney(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestWhatsAppLink(t *testing.T) {
	require.Equal(t, "https://wa.me/5493415550000", whatsAppLink("+54 9 341 555-0000", ""))
	require.Equal(t, "https://wa.me/54341?text="+url.QueryEscape("Hola! Quiero pedir: Manzana"), whatsAppLink("54341", " Manzana "))
}

func TestPageURL(t *testing.T) {
	require.Equal(t, "/", pageURL("/", "", "", 1))
	require.Equal(t, "/?page=3", pageURL("/", "", "", 3))
	require.Equal(t, "/?categoria=frutas&page=2&q=pera+roja", pageURL("/", "pera roja", "frutas", 2))
	require.Equal(t, "/admin/productos/?q=kiwi", pageURL("/admin/productos/", "kiwi", "", 1))
}

func TestPageAndPercentParams(t *testing.T) {
	require.Equal(t, 1, pageParam(""))
	require.Equal(t, 1, pageParam("abc"))
	require.Equal(t, 1, pageParam("-2"))
	require.Equal(t, 4, pageParam(" 4 "))

	require.Equal(t, 0, percentParam(""))
	require.Equal(t, 0, percentParam("-5"))
	require.Equal(t, 0, percentParam("12.5"))
	require.Equal(t, 15, percentParam("15"))
	require.Equal(t, 100, percentParam("250"))
}

func TestReadKeepMask(t *testing.T) {
	form := url.Values{
		keepFieldPrefix + "0": {"1"},
		keepFieldPrefix + "1": {"0"},
		keepFieldPrefix + "2": {""},
		keepFieldPrefix + "x": {"1"},
		"titulo":              {"Pera"},
	}
	req := httptest.NewRequest("POST", "/", nil)
	req.PostForm = form

	require.Equal(t, map[int]bool{0: true, 1: false, 2: false}, readKeepMask(req))
}
