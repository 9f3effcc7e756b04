package ledger

import (
	"os"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
)

// recordSize is the physical width of one stored row: h_in ‖ h_row
// (§4.C "Row store encoding"). Skip pointers are never stored; they are
// reconstructed by random-access reads of predecessor rows' h_row.
const recordSize = 2 * hashcodec.Size

// Record is the physical content of one stored row.
type Record struct {
	InputHash hashcodec.Hash
	RowHash   hashcodec.Hash
}

func (r Record) encode() []byte {
	buf := make([]byte, recordSize)
	copy(buf[:hashcodec.Size], r.InputHash[:])
	copy(buf[hashcodec.Size:], r.RowHash[:])
	return buf
}

func decodeRecord(buf []byte) (Record, error) {
	if len(buf) != recordSize {
		return Record{}, errors.Errorf("ledger: record must be %d bytes, got %d", recordSize, len(buf))
	}
	var r Record
	copy(r.InputHash[:], buf[:hashcodec.Size])
	copy(r.RowHash[:], buf[hashcodec.Size:])
	return r, nil
}

// RowStore is the minimal random-access row table a SkipLedger is built
// on: an append-only, trim-from-end sequence of fixed-width records.
// Implementations own no concurrency guarantees of their own — the
// single-writer/multi-reader discipline of §5 is enforced one level up,
// by SkipLedger.
type RowStore interface {
	Size() (int64, error)
	Get(n int64) (Record, error)
	Append(recs ...Record) error
	Trim(newSize int64) error
	Close() error
}

// MemoryRowStore is a slice-backed RowStore, the default for tests and
// for ledgers that don't need to survive a process restart.
type MemoryRowStore struct {
	rows []Record
}

func NewMemoryRowStore() *MemoryRowStore {
	return &MemoryRowStore{}
}

func (s *MemoryRowStore) Size() (int64, error) {
	return int64(len(s.rows)), nil
}

func (s *MemoryRowStore) Get(n int64) (Record, error) {
	if n < 1 || n > int64(len(s.rows)) {
		return Record{}, errors.Errorf("ledger: row %d out of range [1,%d]", n, len(s.rows))
	}
	return s.rows[n-1], nil
}

func (s *MemoryRowStore) Append(recs ...Record) error {
	s.rows = append(s.rows, recs...)
	return nil
}

func (s *MemoryRowStore) Trim(newSize int64) error {
	if newSize < 0 || newSize > int64(len(s.rows)) {
		return errors.Errorf("ledger: trim size %d out of range [0,%d]", newSize, len(s.rows))
	}
	s.rows = s.rows[:newSize]
	return nil
}

func (s *MemoryRowStore) Close() error { return nil }

// FileRowStore is a positioned-I/O RowStore backing a ledger with a flat
// file of fixed-width records, one per row, read and written with
// ReadAt/WriteAt so concurrent readers never race the writer's file
// offset (§5: "the on-disk journal file is read with a positioned
// reader").
type FileRowStore struct {
	f    *os.File
	size int64
}

// OpenFileRowStore opens (creating if absent) the row table at path and
// establishes its current row count from the file size.
func OpenFileRowStore(path string) (*FileRowStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "ledger: opening row table")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "ledger: stat row table")
	}
	if fi.Size()%recordSize != 0 {
		f.Close()
		return nil, errors.Errorf("ledger: row table %q has a partial trailing record (%d bytes)", path, fi.Size())
	}
	return &FileRowStore{f: f, size: fi.Size() / recordSize}, nil
}

func (s *FileRowStore) Size() (int64, error) {
	return s.size, nil
}

func (s *FileRowStore) Get(n int64) (Record, error) {
	if n < 1 || n > s.size {
		return Record{}, errors.Errorf("ledger: row %d out of range [1,%d]", n, s.size)
	}
	buf := make([]byte, recordSize)
	if _, err := s.f.ReadAt(buf, (n-1)*recordSize); err != nil {
		return Record{}, errors.Wrapf(err, "ledger: reading row %d", n)
	}
	return decodeRecord(buf)
}

func (s *FileRowStore) Append(recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}
	buf := make([]byte, 0, recordSize*len(recs))
	for _, r := range recs {
		buf = append(buf, r.encode()...)
	}
	if _, err := s.f.WriteAt(buf, s.size*recordSize); err != nil {
		return errors.Wrap(err, "ledger: appending rows")
	}
	s.size += int64(len(recs))
	return nil
}

func (s *FileRowStore) Trim(newSize int64) error {
	if newSize < 0 || newSize > s.size {
		return errors.Errorf("ledger: trim size %d out of range [0,%d]", newSize, s.size)
	}
	if err := s.f.Truncate(newSize * recordSize); err != nil {
		return errors.Wrap(err, "ledger: truncating row table")
	}
	s.size = newSize
	return nil
}

func (s *FileRowStore) Close() error {
	return s.f.Close()
}
