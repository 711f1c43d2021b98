package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zuberi/fizikia/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses the `ordering` query param: comma-separated field names, "-"
// prefix for descending. Ordering fields end up in SQL so anything outside
// the allowed set is dropped.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !fieldAllowed(field, allowed) {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func fieldAllowed(field string, allowed []string) bool {
	for _, f := range allowed {
		if f == field {
			return true
		}
	}
	return false
}

// bindPagination extracts cleaned `page`/`page_size` query values.
func bindPagination(ctx echo.Context) core.Pagination {
	var page core.Pagination
	if err := ctx.Bind(&page); err != nil {
		page = core.Pagination{}
	}
	page.Clean()
	return page
}
