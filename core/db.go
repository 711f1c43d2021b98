package core

import (
	"context"
	"database/sql"
	"math"

	"github.com/jmoiron/sqlx"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx so repositories
	// can run inside or outside a transaction.
	DBExecutor interface {
		sqlx.ExtContext

		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	// Tx is a transaction handed to repositories as their executor.
	Tx interface {
		DBExecutor

		Commit() error
		Rollback() error
	}

	// DB opens transactions for multi-statement service operations.
	DB interface {
		BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
		PingContext(ctx context.Context) error
		Close() error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination holds cleaned `page`/`page_size` query values.
type Pagination struct {
	Page     int `query:"page"`
	PageSize int `query:"page_size"`
}

func (p *Pagination) Clean() {
	if p.Page <= 0 {
		p.Page = 1
	}
	switch {
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	case p.PageSize <= 0:
		p.PageSize = DefaultPageSize
	}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) Limit() int {
	return p.PageSize
}

// PaginatedData is the response envelope for paginated list endpoints.
type PaginatedData struct {
	Data        interface{} `json:"data"`
	TotalRows   int64       `json:"total_rows"`
	TotalPages  int         `json:"total_pages"`
	CurrentPage int         `json:"current_page"`
	PageSize    int         `json:"page_size"`
}

func NewPaginatedData(data interface{}, totalRows int64, p Pagination) PaginatedData {
	return PaginatedData{
		Data:        data,
		TotalRows:   totalRows,
		TotalPages:  int(math.Ceil(float64(totalRows) / float64(p.PageSize))),
		CurrentPage: p.Page,
		PageSize:    p.PageSize,
	}
}
