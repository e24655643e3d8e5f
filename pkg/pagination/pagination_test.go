package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 1 {
		t.Errorf("expected default page 1, got %d", p.Page)
	}
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset() != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset())
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=25", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
	if p.Limit != 25 {
		t.Errorf("expected limit 25, got %d", p.Limit)
	}
	if p.Offset() != 50 {
		t.Errorf("expected offset 50, got %d", p.Offset())
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=5000", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_InvalidValues(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=-2&limit=abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 1 {
		t.Errorf("expected page 1 for invalid input, got %d", p.Page)
	}
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit for invalid input, got %d", p.Limit)
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		total int
		want  int
	}{
		{"exact division", 10, 100, 10},
		{"with remainder", 10, 101, 11},
		{"single partial page", 10, 3, 1},
		{"empty", 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Params{Page: 1, Limit: tt.limit}
			if got := p.TotalPages(tt.total); got != tt.want {
				t.Errorf("TotalPages(%d) = %d, want %d", tt.total, got, tt.want)
			}
		})
	}
}

func TestHasNext(t *testing.T) {
	p := Params{Page: 1, Limit: 10}
	if !p.HasNext(25) {
		t.Error("expected HasNext true on page 1 of 3")
	}
	p.Page = 3
	if p.HasNext(25) {
		t.Error("expected HasNext false on last page")
	}
}

func TestNewResponse(t *testing.T) {
	p := Params{Page: 2, Limit: 10}
	resp := NewResponse([]string{"a", "b"}, 35, p)

	if !resp.OK {
		t.Error("expected ok=true")
	}
	if resp.Pagination.Total != 35 {
		t.Errorf("expected total 35, got %d", resp.Pagination.Total)
	}
	if resp.Pagination.TotalPages != 4 {
		t.Errorf("expected 4 total pages, got %d", resp.Pagination.TotalPages)
	}
	if resp.Pagination.Page != 2 {
		t.Errorf("expected page 2, got %d", resp.Pagination.Page)
	}
}
