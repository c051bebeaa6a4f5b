// Package dbtest provides an in-memory database.Pool that records every
// statement and answers from canned responses.
package dbtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Konsultn-Engineering/ensemble/database"
	"github.com/Konsultn-Engineering/ensemble/value"
)

// Statement is one recorded call.
type Statement struct {
	SQL  string
	Args []value.Value
	Exec bool
	InTx bool
}

type response struct {
	match  string
	rows   []value.Value
	result database.Result
	err    error
}

// Pool matches each statement against registered responses by substring,
// most recently registered first. Unmatched queries return no rows and
// unmatched statements report one affected row.
type Pool struct {
	mu         sync.Mutex
	responses  []response
	statements []Statement
	acquired   int
	released   int
	commits    int
	rollbacks  int
	closed     bool

	// AcquireErr, when set, fails every Acquire.
	AcquireErr error
}

func New() *Pool {
	return &Pool{}
}

// OnQuery answers queries containing match with rows.
func (p *Pool) OnQuery(match string, rows ...*value.Map) *Pool {
	vals := make([]value.Value, len(rows))
	for i, r := range rows {
		vals[i] = value.MapOf(r)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, response{match: match, rows: vals})
	return p
}

// OnExec answers statements containing match with res.
func (p *Pool) OnExec(match string, res database.Result) *Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, response{match: match, result: res})
	return p
}

// Fail makes statements containing match return err.
func (p *Pool) Fail(match string, err error) *Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, response{match: match, err: err})
	return p
}

// Row builds a row map from alternating column names and Go values.
func Row(pairs ...any) *value.Map {
	m := value.NewMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i].(string), value.MustEncode(pairs[i+1]))
	}
	return m
}

func (p *Pool) Statements() []Statement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Statement(nil), p.statements...)
}

// SQL returns the recorded statement texts in order.
func (p *Pool) SQL() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.statements))
	for i, s := range p.statements {
		out[i] = s.SQL
	}
	return out
}

func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.statements)
}

// Outstanding is the number of acquired connections not yet released.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired - p.released
}

func (p *Pool) Commits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commits
}

func (p *Pool) Rollbacks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rollbacks
}

func (p *Pool) Acquire(ctx context.Context) (database.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("dbtest: pool closed")
	}
	if p.AcquireErr != nil {
		return nil, p.AcquireErr
	}
	p.acquired++
	return &conn{pool: p}, nil
}

func (p *Pool) Ping(ctx context.Context) error {
	if p.AcquireErr != nil {
		return p.AcquireErr
	}
	return ctx.Err()
}

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Pool) respond(query string, args []value.Value, exec, inTx bool) response {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statements = append(p.statements, Statement{
		SQL:  query,
		Args: append([]value.Value(nil), args...),
		Exec: exec,
		InTx: inTx,
	})
	for i := len(p.responses) - 1; i >= 0; i-- {
		if strings.Contains(query, p.responses[i].match) {
			return p.responses[i]
		}
	}
	return response{result: database.Result{RowsAffected: 1}}
}

type conn struct {
	pool     *Pool
	released bool
	inTx     bool
}

func (c *conn) Query(ctx context.Context, query string, args []value.Value) ([]value.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := c.pool.respond(query, args, false, c.inTx)
	return r.rows, r.err
}

func (c *conn) Exec(ctx context.Context, query string, args []value.Value) (database.Result, error) {
	if err := ctx.Err(); err != nil {
		return database.Result{}, err
	}
	r := c.pool.respond(query, args, true, c.inTx)
	return r.result, r.err
}

func (c *conn) Begin(context.Context) (database.Tx, error) {
	return &tx{conn: &conn{pool: c.pool, inTx: true}}, nil
}

func (c *conn) Release() {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	if !c.released {
		c.released = true
		c.pool.released++
	}
}

type tx struct {
	*conn
}

func (t *tx) Commit(context.Context) error {
	t.pool.mu.Lock()
	defer t.pool.mu.Unlock()
	t.pool.commits++
	return nil
}

func (t *tx) Rollback(context.Context) error {
	t.pool.mu.Lock()
	defer t.pool.mu.Unlock()
	t.pool.rollbacks++
	return nil
}

var _ database.Pool = (*Pool)(nil)
