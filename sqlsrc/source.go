// Package sqlsrc is the relational-source collaborator contract (§4.J)
// and a reference implementation over modernc.org/sqlite. The real
// production adapter is an external collaborator; this package only
// fixes the minimum interface it must satisfy and a working example of
// one.
package sqlsrc

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/row"
)

// Source is the contract §4.J requires of a relational-source adapter.
type Source interface {
	Size() (int64, error)
	GetRow(n int64) (row.SourceRow, error)
	UpdateSize() (int64, error)
	SaltScheme() (row.SaltScheme, error)
}

// SQLiteSource is a reference Source backed by modernc.org/sqlite,
// configured with the size/row-by-number queries engconfig loads
// (§4.K). sizeQuery must return one row, one integer column. rowQuery
// must accept one `?` parameter (the row number) and return one row
// whose columns become cells in declaration order.
type SQLiteSource struct {
	db         *sql.DB
	sizeQuery  string
	rowQuery   string
	saltScheme row.SaltScheme
	cachedSize int64
}

// NewSQLiteSource wraps db with the given queries and salt scheme. If
// scheme salts any cells (AllSalted or a non-empty salted-index set),
// rowQuery's columns alone aren't enough: GetRow's SourceRow carries no
// per-cell or row salt, so row.SourceRow.InputHash will error for any
// row it returns. A salted scheme needs either a rowQuery column
// holding a per-row salt (set on the returned SourceRow before hashing)
// or a source-side scheme restricted to unsalted indices.
func NewSQLiteSource(db *sql.DB, sizeQuery, rowQuery string, scheme row.SaltScheme) *SQLiteSource {
	return &SQLiteSource{db: db, sizeQuery: sizeQuery, rowQuery: rowQuery, saltScheme: scheme}
}

func (s *SQLiteSource) Size() (int64, error) {
	if s.cachedSize > 0 {
		return s.cachedSize, nil
	}
	return s.UpdateSize()
}

// UpdateSize re-reads the monotone row counter (§4.J).
func (s *SQLiteSource) UpdateSize() (int64, error) {
	var n int64
	if err := s.db.QueryRow(s.sizeQuery).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "sqlsrc: running size query")
	}
	s.cachedSize = n
	return n, nil
}

func (s *SQLiteSource) SaltScheme() (row.SaltScheme, error) {
	return s.saltScheme, nil
}

// GetRow executes rowQuery for row number n and maps the returned
// columns to cells by their reported driver type. A query returning no
// rows is a primary-key "hole" (§4.J): it yields a HoleRow rather than
// an error, since gaps are a supported, expected source-side condition.
func (s *SQLiteSource) GetRow(n int64) (row.SourceRow, error) {
	rows, err := s.db.Query(s.rowQuery, n)
	if err != nil {
		return row.SourceRow{}, errors.Wrapf(err, "sqlsrc: running row query for n=%d", n)
	}
	defer rows.Close()

	if !rows.Next() {
		return row.HoleRow(n), nil
	}

	cols, err := rows.Columns()
	if err != nil {
		return row.SourceRow{}, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return row.SourceRow{}, errors.Wrapf(err, "sqlsrc: scanning row n=%d", n)
	}

	cells := make([]row.Cell, len(vals))
	for i, v := range vals {
		cells[i] = cellFromDriverValue(v)
	}
	return row.SourceRow{N: n, Cells: cells, Scheme: s.saltScheme}, nil
}

func cellFromDriverValue(v any) row.Cell {
	switch x := v.(type) {
	case nil:
		return row.NullCell()
	case int64:
		return row.LongCell(x)
	case float64:
		return row.DoubleCell(x)
	case []byte:
		return row.BytesCell(append([]byte(nil), x...))
	case string:
		return row.StringCell(x)
	case bool:
		if x {
			return row.LongCell(1)
		}
		return row.LongCell(0)
	default:
		return row.StringCell("")
	}
}
