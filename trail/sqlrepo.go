package trail

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
)

// SQLRepo is the relational-backed Repo over three tables: a chain-id
// sequence table (trail_chain_seq), a chain table holding each trail's
// sibling-hash nodes (trail_chain), and a trail table referencing its
// chain, keyed by row number (trail).
// Schema DDL is owned by the package, not an external migration tool.
type SQLRepo struct {
	db *sql.DB
}

// OpenSQLRepo opens (creating if absent) the trail tables on db.
func OpenSQLRepo(db *sql.DB) (*SQLRepo, error) {
	r := &SQLRepo{db: db}
	if err := r.init(); err != nil {
		return nil, errors.Wrap(err, "trail: initializing schema")
	}
	return r, nil
}

func (r *SQLRepo) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trail_chain_seq (
			chain_id INTEGER PRIMARY KEY AUTOINCREMENT
		)`,
		`CREATE TABLE IF NOT EXISTS trail_chain (
			node_id    INTEGER PRIMARY KEY AUTOINCREMENT,
			chain_id   INTEGER NOT NULL,
			node_order INTEGER NOT NULL,
			node_hash  BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS trail_chain_id_idx ON trail_chain(chain_id)`,
		`CREATE TABLE IF NOT EXISTS trail (
			trail_id     INTEGER PRIMARY KEY,
			row_no       INTEGER NOT NULL UNIQUE,
			utc          INTEGER NOT NULL,
			merkle_index INTEGER NOT NULL,
			merkle_count INTEGER NOT NULL,
			chain_length INTEGER NOT NULL,
			row_hash     BLOB NOT NULL,
			chain_id     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS trail_row_no_idx ON trail(row_no)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepo) Add(trailed Trailed) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, errors.Wrap(err, "trail: begin add")
	}
	defer tx.Rollback()

	var lastRow, lastUtc sql.NullInt64
	err = tx.QueryRow(
		`SELECT row_no, utc FROM trail ORDER BY row_no DESC LIMIT 1`,
	).Scan(&lastRow, &lastUtc)
	if err != nil && err != sql.ErrNoRows {
		return false, errors.Wrap(err, "trail: reading last entry")
	}
	if lastRow.Valid {
		if trailed.N <= lastRow.Int64 || trailed.Crumtrail.Crum.Utc < lastUtc.Int64 {
			return false, nil
		}
	}

	res, err := tx.Exec(`INSERT INTO trail_chain_seq DEFAULT VALUES`)
	if err != nil {
		return false, errors.Wrap(err, "trail: allocating chain")
	}
	chainID, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	for i, h := range trailed.Crumtrail.Chain {
		if _, err := tx.Exec(
			`INSERT INTO trail_chain (chain_id, node_order, node_hash) VALUES (?, ?, ?)`,
			chainID, i, h[:],
		); err != nil {
			return false, errors.Wrap(err, "trail: inserting chain node")
		}
	}

	_, err = tx.Exec(
		`INSERT INTO trail (row_no, utc, merkle_index, merkle_count, chain_length, row_hash, chain_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trailed.N, trailed.Crumtrail.Crum.Utc, trailed.Crumtrail.LeafIndex,
		trailed.Crumtrail.LeafCount, len(trailed.Crumtrail.Chain),
		trailed.Crumtrail.Crum.Hash[:], chainID,
	)
	if err != nil {
		return false, errors.Wrap(err, "trail: inserting trail row")
	}
	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "trail: committing add")
	}
	return true, nil
}

func (r *SQLRepo) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trail`).Scan(&n)
	return n, errors.Wrap(err, "trail: count")
}

func (r *SQLRepo) Get(index int) (Trailed, error) {
	var rowNo int64
	err := r.db.QueryRow(
		`SELECT row_no FROM trail ORDER BY row_no ASC LIMIT 1 OFFSET ?`, index,
	).Scan(&rowNo)
	if err == sql.ErrNoRows {
		return Trailed{}, errors.Errorf("trail: index %d out of range", index)
	}
	if err != nil {
		return Trailed{}, errors.Wrap(err, "trail: get by index")
	}
	return r.byRowNo(rowNo)
}

func (r *SQLRepo) Last() (Trailed, bool, error) {
	var rowNo int64
	err := r.db.QueryRow(`SELECT row_no FROM trail ORDER BY row_no DESC LIMIT 1`).Scan(&rowNo)
	if err == sql.ErrNoRows {
		return Trailed{}, false, nil
	}
	if err != nil {
		return Trailed{}, false, errors.Wrap(err, "trail: last")
	}
	t, err := r.byRowNo(rowNo)
	return t, true, err
}

func (r *SQLRepo) Nearest(n int64) (Trailed, bool, error) {
	var rowNo int64
	err := r.db.QueryRow(
		`SELECT row_no FROM trail WHERE row_no >= ? ORDER BY row_no ASC LIMIT 1`, n,
	).Scan(&rowNo)
	if err == sql.ErrNoRows {
		return Trailed{}, false, nil
	}
	if err != nil {
		return Trailed{}, false, errors.Wrap(err, "trail: nearest")
	}
	t, err := r.byRowNo(rowNo)
	return t, true, err
}

func (r *SQLRepo) TrimAfter(n int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "trail: begin trim")
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT chain_id FROM trail WHERE row_no > ?`, n)
	if err != nil {
		return errors.Wrap(err, "trail: selecting chains to trim")
	}
	var chainIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		chainIDs = append(chainIDs, id)
	}
	rows.Close()

	if _, err := tx.Exec(`DELETE FROM trail WHERE row_no > ?`, n); err != nil {
		return errors.Wrap(err, "trail: deleting rows")
	}
	for _, id := range chainIDs {
		if _, err := tx.Exec(`DELETE FROM trail_chain WHERE chain_id = ?`, id); err != nil {
			return errors.Wrap(err, "trail: deleting chain")
		}
		if _, err := tx.Exec(`DELETE FROM trail_chain_seq WHERE chain_id = ?`, id); err != nil {
			return errors.Wrap(err, "trail: deleting chain allocation")
		}
	}
	return errors.Wrap(tx.Commit(), "trail: committing trim")
}

func (r *SQLRepo) byRowNo(rowNo int64) (Trailed, error) {
	var (
		utc, merkleIndex, merkleCount, chainLen, chainID int64
		rowHashBytes                                     []byte
	)
	err := r.db.QueryRow(
		`SELECT utc, merkle_index, merkle_count, chain_length, row_hash, chain_id
		 FROM trail WHERE row_no = ?`, rowNo,
	).Scan(&utc, &merkleIndex, &merkleCount, &chainLen, &rowHashBytes, &chainID)
	if err != nil {
		return Trailed{}, errors.Wrap(err, "trail: reading row")
	}
	rowHash, err := hashcodec.NewFromBytes(rowHashBytes)
	if err != nil {
		return Trailed{}, err
	}

	chainRows, err := r.db.Query(
		`SELECT node_hash FROM trail_chain WHERE chain_id = ? ORDER BY node_order ASC`, chainID,
	)
	if err != nil {
		return Trailed{}, errors.Wrap(err, "trail: reading chain")
	}
	defer chainRows.Close()
	chain := make([]hashcodec.Hash, 0, chainLen)
	for chainRows.Next() {
		var b []byte
		if err := chainRows.Scan(&b); err != nil {
			return Trailed{}, err
		}
		h, err := hashcodec.NewFromBytes(b)
		if err != nil {
			return Trailed{}, err
		}
		chain = append(chain, h)
	}

	return Trailed{
		N: rowNo,
		Crumtrail: Crumtrail{
			Crum:      Crum{Hash: rowHash, Utc: utc},
			LeafCount: int(merkleCount),
			LeafIndex: int(merkleIndex),
			Chain:     chain,
		},
	}, nil
}

func (r *SQLRepo) Close() error { return r.db.Close() }
