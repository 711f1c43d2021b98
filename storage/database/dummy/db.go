// Package dummydb provides in-memory repositories for tests, mirroring the
// SQL implementations' behavior closely enough to run the API against.
package dummydb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/appeal"
	"github.com/zuberi/fizikia/core/assignment"
	"github.com/zuberi/fizikia/core/qa"
	"github.com/zuberi/fizikia/core/schedmail"
	"github.com/zuberi/fizikia/core/submission"
	"github.com/zuberi/fizikia/core/user"
)

type (
	DB struct {
		user       *userTable
		assignment *assignmentTable
		submission *submissionTable
		appeal     *appealTable
		email      *emailTable
		qa         *qaTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]*assignment.Assignment
	}

	submissionTable struct {
		sync.RWMutex
		table map[string]*submission.Submission
	}

	appealTable struct {
		sync.RWMutex
		table    map[string]*appeal.GradeAppeal
		messages map[string]*appeal.AppealMessage
	}

	emailTable struct {
		sync.RWMutex
		table map[string]*schedmail.ScheduledEmail
	}

	qaTable struct {
		sync.RWMutex
		table map[string]*qa.Record
	}
)

var _ core.DB = (*DB)(nil)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		assignment: &assignmentTable{table: make(map[string]*assignment.Assignment)},
		submission: &submissionTable{table: make(map[string]*submission.Submission)},
		appeal: &appealTable{
			table:    make(map[string]*appeal.GradeAppeal),
			messages: make(map[string]*appeal.AppealMessage),
		},
		email: &emailTable{table: make(map[string]*schedmail.ScheduledEmail)},
		qa:    &qaTable{table: make(map[string]*qa.Record)},
	}
	return db, nil
}

// BeginTx hands out a no-op transaction; each repository call already locks
// the tables it touches.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.Tx, error) {
	return noopTx{}, nil
}

func (db *DB) PingContext(ctx context.Context) error { return nil }

func (db *DB) Close() error { return nil }

var errNoSQL = errors.New("dummydb: raw SQL not supported")

// noopTx satisfies core.Tx; the dummy repositories ignore their executors.
type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

func (noopTx) DriverName() string         { return "dummy" }
func (noopTx) Rebind(query string) string { return query }
func (noopTx) BindNamed(query string, arg interface{}) (string, []interface{}, error) {
	return query, nil, nil
}
func (noopTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}
func (noopTx) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	return nil, errNoSQL
}
func (noopTx) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	return nil
}
func (noopTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}
func (noopTx) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errNoSQL
}
func (noopTx) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errNoSQL
}

// paginate clamps a page window to n rows.
func paginate(n int, page core.Pagination) (lo, hi int) {
	lo = page.Offset()
	if lo > n {
		lo = n
	}
	hi = lo + page.Limit()
	if hi > n {
		hi = n
	}
	return lo, hi
}
