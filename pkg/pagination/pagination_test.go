package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=500", MaxLimit, 0},
		{"?offset=-3", DefaultLimit, 0},
		{"?limit=10&page=3", 10, 20},
		{"?limit=10&page=0", 10, 0},
		{"?limit=10&page=3&offset=4", 10, 4},
		{"?limit=abc", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := paramsFor(tt.query)
			if p.Limit != tt.limit || p.Offset != tt.offset {
				t.Errorf("got limit=%d offset=%d, want %d/%d", p.Limit, p.Offset, tt.limit, tt.offset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 50, 20, 0)
	if resp.Total != 50 || !resp.HasMore {
		t.Errorf("unexpected response %+v", resp)
	}
	last := NewResponse(nil, 50, 20, 40)
	if last.HasMore {
		t.Error("expected HasMore false on last page")
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name    string
		p       Params
		want    []int
		hasMore bool
	}{
		{"first", Params{Limit: 2, Offset: 0}, []int{1, 2}, true},
		{"middle", Params{Limit: 2, Offset: 2}, []int{3, 4}, true},
		{"last partial", Params{Limit: 2, Offset: 4}, []int{5}, false},
		{"past end", Params{Limit: 2, Offset: 9}, []int{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Page(items, tt.p)
			got := resp.Data.([]int)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
			if resp.Total != 5 || resp.HasMore != tt.hasMore {
				t.Errorf("unexpected envelope %+v", resp)
			}
		})
	}
}

func TestPage_CopiesWindow(t *testing.T) {
	items := []int{1, 2, 3}
	got := Page(items, Params{Limit: 2}).Data.([]int)
	got[0] = 99
	if items[0] != 1 {
		t.Error("expected page to be a copy")
	}
}

func TestParams_Navigation(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	if !p.HasNext(11) || p.HasNext(10) {
		t.Error("unexpected HasNext")
	}
	if p.HasPrevious() {
		t.Error("first page has no previous")
	}
	if !(Params{Limit: 10, Offset: 10}).HasPrevious() {
		t.Error("expected previous page")
	}
}
