package journal

import (
	"encoding/binary"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/lerr"
)

// OffsetsStore is the optional offsets file (§4.G): checkpoints at row
// numbers divisible by 2^dex, ordered by row number.
type OffsetsStore interface {
	Append(cp Checkpoint) error
	// Nearest returns the checkpoint with the largest N <= n, or
	// ok=false if none exists (used to find a replay starting point).
	Nearest(n int64) (Checkpoint, bool, error)
	Last() (Checkpoint, bool, error)
	TrimAfter(n int64) error
	All() ([]Checkpoint, error)
	Close() error
}

// Dex is the row-delta exponent: a checkpoint is recorded at row n iff
// n is divisible by 2^dex. Dex == 63 disables checkpointing (§4.G).
type Dex uint

func (d Dex) Disabled() bool { return d == 63 }

// ShouldCheckpoint reports whether row n falls on a checkpoint boundary.
func (d Dex) ShouldCheckpoint(n int64) bool {
	if d.Disabled() {
		return false
	}
	step := int64(1) << uint(d)
	return n%step == 0
}

// MemoryOffsetsStore is a process-local OffsetsStore.
type MemoryOffsetsStore struct {
	mu      sync.RWMutex
	entries []Checkpoint
}

func NewMemoryOffsetsStore() *MemoryOffsetsStore {
	return &MemoryOffsetsStore{}
}

func (s *MemoryOffsetsStore) Append(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) > 0 && cp.N <= s.entries[len(s.entries)-1].N {
		return errors.Errorf("journal: checkpoint row numbers must be strictly ascending, got %d after %d", cp.N, s.entries[len(s.entries)-1].N)
	}
	s.entries = append(s.entries, cp)
	return nil
}

func (s *MemoryOffsetsStore) Nearest(n int64) (Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].N > n })
	if idx == 0 {
		return Checkpoint{}, false, nil
	}
	return s.entries[idx-1], true, nil
}

func (s *MemoryOffsetsStore) Last() (Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return Checkpoint{}, false, nil
	}
	return s.entries[len(s.entries)-1], true, nil
}

func (s *MemoryOffsetsStore) TrimAfter(n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].N > n })
	s.entries = s.entries[:idx]
	return nil
}

func (s *MemoryOffsetsStore) All() ([]Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Checkpoint, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemoryOffsetsStore) Close() error { return nil }

// offsetsRecordSize is the fixed physical record size FileOffsetsStore
// uses: N, LineNo, EolOffset (int64 each) + RowHash (32 bytes).
const offsetsRecordSize = 3*8 + hashcodec.Size

// FileOffsetsStore is a file-backed OffsetsStore of fixed-size records,
// grounded on ledger.FileRowStore's ReadAt/WriteAt idiom.
type FileOffsetsStore struct {
	mu sync.RWMutex
	f  *os.File
}

// OpenFileOffsetsStore opens (creating if absent) the offsets file at
// path, validating it holds no partial trailing record.
func OpenFileOffsetsStore(path string) (*FileOffsetsStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &lerr.IoError{Op: "open offsets file", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &lerr.IoError{Op: "stat offsets file", Err: err}
	}
	if info.Size()%offsetsRecordSize != 0 {
		f.Close()
		return nil, &lerr.FormatError{ByteOffset: info.Size(), Msg: "offsets file has a partial trailing record"}
	}
	return &FileOffsetsStore{f: f}, nil
}

func encodeCheckpoint(cp Checkpoint) []byte {
	buf := make([]byte, offsetsRecordSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(cp.N))
	binary.BigEndian.PutUint64(buf[8:16], uint64(cp.LineNo))
	binary.BigEndian.PutUint64(buf[16:24], uint64(cp.EolOffset))
	copy(buf[24:], cp.RowHash[:])
	return buf
}

func decodeCheckpoint(buf []byte) (Checkpoint, error) {
	h, err := hashcodec.NewFromBytes(buf[24:])
	if err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{
		N:         int64(binary.BigEndian.Uint64(buf[0:8])),
		LineNo:    int64(binary.BigEndian.Uint64(buf[8:16])),
		EolOffset: int64(binary.BigEndian.Uint64(buf[16:24])),
		RowHash:   h,
	}, nil
}

func (s *FileOffsetsStore) count() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size() / offsetsRecordSize, nil
}

func (s *FileOffsetsStore) at(index int64) (Checkpoint, error) {
	buf := make([]byte, offsetsRecordSize)
	if _, err := s.f.ReadAt(buf, index*offsetsRecordSize); err != nil {
		return Checkpoint{}, err
	}
	return decodeCheckpoint(buf)
}

func (s *FileOffsetsStore) Append(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, err := s.count()
	if err != nil {
		return &lerr.IoError{Op: "append checkpoint", Err: err}
	}
	if count > 0 {
		last, err := s.at(count - 1)
		if err != nil {
			return &lerr.IoError{Op: "append checkpoint", Err: err}
		}
		if cp.N <= last.N {
			return errors.Errorf("journal: checkpoint row numbers must be strictly ascending, got %d after %d", cp.N, last.N)
		}
	}
	if _, err := s.f.WriteAt(encodeCheckpoint(cp), count*offsetsRecordSize); err != nil {
		return &lerr.IoError{Op: "append checkpoint", Err: err}
	}
	return nil
}

func (s *FileOffsetsStore) Nearest(n int64) (Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count, err := s.count()
	if err != nil {
		return Checkpoint{}, false, &lerr.IoError{Op: "nearest checkpoint", Err: err}
	}
	lo, hi := int64(0), count
	for lo < hi {
		mid := (lo + hi) / 2
		cp, err := s.at(mid)
		if err != nil {
			return Checkpoint{}, false, &lerr.IoError{Op: "nearest checkpoint", Err: err}
		}
		if cp.N > n {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == 0 {
		return Checkpoint{}, false, nil
	}
	cp, err := s.at(lo - 1)
	if err != nil {
		return Checkpoint{}, false, &lerr.IoError{Op: "nearest checkpoint", Err: err}
	}
	return cp, true, nil
}

func (s *FileOffsetsStore) Last() (Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count, err := s.count()
	if err != nil {
		return Checkpoint{}, false, &lerr.IoError{Op: "last checkpoint", Err: err}
	}
	if count == 0 {
		return Checkpoint{}, false, nil
	}
	cp, err := s.at(count - 1)
	if err != nil {
		return Checkpoint{}, false, &lerr.IoError{Op: "last checkpoint", Err: err}
	}
	return cp, true, nil
}

func (s *FileOffsetsStore) TrimAfter(n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, err := s.count()
	if err != nil {
		return &lerr.IoError{Op: "trim checkpoints", Err: err}
	}
	lo, hi := int64(0), count
	for lo < hi {
		mid := (lo + hi) / 2
		cp, err := s.at(mid)
		if err != nil {
			return &lerr.IoError{Op: "trim checkpoints", Err: err}
		}
		if cp.N > n {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if err := s.f.Truncate(lo * offsetsRecordSize); err != nil {
		return &lerr.IoError{Op: "trim checkpoints", Err: err}
	}
	return nil
}

func (s *FileOffsetsStore) All() ([]Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count, err := s.count()
	if err != nil {
		return nil, &lerr.IoError{Op: "list checkpoints", Err: err}
	}
	out := make([]Checkpoint, count)
	for i := int64(0); i < count; i++ {
		cp, err := s.at(i)
		if err != nil {
			return nil, &lerr.IoError{Op: "list checkpoints", Err: err}
		}
		out[i] = cp
	}
	return out, nil
}

func (s *FileOffsetsStore) Close() error { return s.f.Close() }
