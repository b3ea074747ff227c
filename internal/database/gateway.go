package database

import (
	"context"

	"gorm.io/gorm"
)

// ExecResult carries the outcome of a write statement.
type ExecResult struct {
	LastInsertID int64
	RowsAffected int64
}

// Execute runs a single write statement with positional arguments.
func (s *Store) Execute(ctx context.Context, query string, args ...any) (ExecResult, error) {
	var res ExecResult
	err := s.Do(ctx, func(db *gorm.DB) error {
		var err error
		res, err = execOn(ctx, db, query, args...)
		return err
	})
	return res, wrap("execute", err)
}

// FetchOne scans the first row of query into dest. found is false when the
// query matched nothing; that is not an error.
func (s *Store) FetchOne(ctx context.Context, dest any, query string, args ...any) (found bool, err error) {
	err = s.Do(ctx, func(db *gorm.DB) error {
		found, err = fetchOneOn(db, dest, query, args...)
		return err
	})
	return found, wrap("fetch_one", err)
}

// FetchMany scans every row of query into dest, which must point to a slice.
// No rows leaves dest empty.
func (s *Store) FetchMany(ctx context.Context, dest any, query string, args ...any) error {
	err := s.Do(ctx, func(db *gorm.DB) error {
		return db.Raw(query, args...).Scan(dest).Error
	})
	return wrap("fetch_many", err)
}

// Tx runs fn inside one transaction. Any error from fn rolls back.
func (s *Store) Tx(ctx context.Context, fn func(q Querier) error) error {
	err := s.Do(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			return fn(&txQuerier{db: tx})
		})
	})
	return wrap("tx", err)
}

// Querier is the gateway surface available inside a transaction.
type Querier interface {
	Execute(ctx context.Context, query string, args ...any) (ExecResult, error)
	FetchOne(ctx context.Context, dest any, query string, args ...any) (bool, error)
	FetchMany(ctx context.Context, dest any, query string, args ...any) error
}

var (
	_ Querier = (*Store)(nil)
	_ Querier = (*txQuerier)(nil)
)

type txQuerier struct {
	db *gorm.DB
}

func (q *txQuerier) Execute(ctx context.Context, query string, args ...any) (ExecResult, error) {
	res, err := execOn(ctx, q.db, query, args...)
	return res, wrap("execute", err)
}

func (q *txQuerier) FetchOne(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	found, err := fetchOneOn(q.db.WithContext(ctx), dest, query, args...)
	return found, wrap("fetch_one", err)
}

func (q *txQuerier) FetchMany(ctx context.Context, dest any, query string, args ...any) error {
	return wrap("fetch_many", q.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error)
}

func execOn(ctx context.Context, db *gorm.DB, query string, args ...any) (ExecResult, error) {
	// Inside a transaction the statement pool is the *sql.Tx, outside it is
	// the *sql.DB; both expose ExecContext with the driver's result.
	r, err := db.WithContext(ctx).Statement.ConnPool.ExecContext(ctx, query, args...)
	if err != nil {
		return ExecResult{}, err
	}
	id, _ := r.LastInsertId()
	n, _ := r.RowsAffected()
	return ExecResult{LastInsertID: id, RowsAffected: n}, nil
}

func fetchOneOn(db *gorm.DB, dest any, query string, args ...any) (bool, error) {
	tx := db.Raw(query, args...).Scan(dest)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
