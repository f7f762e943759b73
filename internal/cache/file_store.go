package cache

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/standardbeagle/strmatch/internal/debug"
	sterrors "github.com/standardbeagle/strmatch/internal/errors"
	"github.com/standardbeagle/strmatch/internal/labels"
	"github.com/standardbeagle/strmatch/internal/matrix"
)

// Compression selects the codec applied to the cache payload
type Compression string

const (
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
	CompressionNone Compression = "none"
)

// DefaultCompression favors ratio: cache files hold N²/2 floats
const DefaultCompression = CompressionZstd

var compressionCodes = map[Compression]uint8{
	CompressionNone: 0,
	CompressionLZ4:  1,
	CompressionZstd: 2,
}

// ParseCompression resolves a configured codec name; empty means default
func ParseCompression(name string) (Compression, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultCompression, nil
	}
	c := Compression(name)
	if _, ok := compressionCodes[c]; !ok {
		return "", fmt.Errorf("unknown cache compression %q", name)
	}
	return c, nil
}

func compressionFromCode(code uint8) (Compression, bool) {
	for c, v := range compressionCodes {
		if v == code {
			return c, true
		}
	}
	return "", false
}

// File format:
//
//	[magic "SMRC"][version u8][compression u8][fingerprint u64][labels u64][payload...]
//
// The payload is a gob-encoded filePayload passed through the codec.
const (
	fileMagic     = "SMRC"
	formatVersion = 1
	headerSize    = 4 + 1 + 1 + 8 + 8
)

// Header is the fixed-size prefix of a cache file
type Header struct {
	Version     uint8
	Compression Compression
	Fingerprint uint64
	Labels      uint64
}

type filePayload struct {
	Labels []labels.Label
	Absent []byte
	Rows   [][]float64
}

// FileStore persists one full ratio matrix together with the exact label set
// it was computed from. It implements matrix.Store.
type FileStore struct {
	path        string
	compression Compression
}

var _ matrix.Store = (*FileStore)(nil)

// NewFileStore creates a store writing to path
func NewFileStore(path string, compression Compression) (*FileStore, error) {
	if path == "" {
		return nil, sterrors.NewConfigError("cache.path", "", errors.New("cache path is empty"))
	}
	if compression == "" {
		compression = DefaultCompression
	}
	if _, ok := compressionCodes[compression]; !ok {
		return nil, sterrors.NewConfigError("cache.compression", string(compression), errors.New("unknown codec"))
	}
	return &FileStore{path: path, compression: compression}, nil
}

// Path returns the cache file path
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) lock() *flock.Flock {
	return flock.New(s.path + ".lock")
}

func (s *FileStore) miss(reason error) error {
	return sterrors.NewCacheError("load", s.path, fmt.Errorf("%w: %w", sterrors.ErrCacheMiss, reason))
}

// Load returns the cached matrix when the file holds exactly set. Every
// failure, including a missing or corrupt file, is a recoverable cache miss.
func (s *FileStore) Load(set labels.Set) (*matrix.RatioMatrix, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, s.miss(err)
	}

	fl := s.lock()
	if err := fl.RLock(); err != nil {
		return nil, s.miss(fmt.Errorf("lock: %w", err))
	}
	defer func() { _ = fl.Unlock() }()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, s.miss(err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	hdr, err := readHeader(r)
	if err != nil {
		return nil, s.miss(err)
	}
	if hdr.Labels != uint64(set.Len()) || hdr.Fingerprint != set.Fingerprint() {
		return nil, s.miss(errors.New("cache was built from a different label set"))
	}

	payload, err := decodePayload(r, hdr.Compression)
	if err != nil {
		return nil, s.miss(err)
	}
	if !labels.Set(payload.Labels).Equal(set) {
		return nil, s.miss(errors.New("cache was built from a different label set"))
	}

	absent := roaring.New()
	if err := absent.UnmarshalBinary(payload.Absent); err != nil {
		return nil, s.miss(fmt.Errorf("absent bitmap: %w", err))
	}
	if err := checkPayload(payload, absent); err != nil {
		return nil, s.miss(err)
	}
	m, err := matrix.New(len(payload.Labels), payload.Rows, absent)
	if err != nil {
		return nil, s.miss(err)
	}
	if !m.Complete() {
		return nil, s.miss(fmt.Errorf("cache holds %d of %d rows", m.Rows(), m.Size()))
	}

	debug.LogCache("loaded %d rows from %s\n", m.Rows(), s.path)
	return m, nil
}

// Save writes a complete matrix and its label set. The file is replaced
// atomically so readers never observe a partial write.
func (s *FileStore) Save(set labels.Set, m *matrix.RatioMatrix) error {
	if !m.Complete() || m.Size() != set.Len() {
		return sterrors.NewCacheError("save", s.path,
			fmt.Errorf("only full matrices are cached (%d of %d rows, %d labels)", m.Rows(), m.Size(), set.Len()))
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return sterrors.NewCacheError("save", s.path, err)
	}

	fl := s.lock()
	if err := fl.Lock(); err != nil {
		return sterrors.NewCacheError("save", s.path, fmt.Errorf("lock: %w", err))
	}
	defer func() { _ = fl.Unlock() }()

	absent, err := m.Absent().ToBytes()
	if err != nil {
		return sterrors.NewCacheError("save", s.path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return sterrors.NewCacheError("save", s.path, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	hdr := Header{
		Version:     formatVersion,
		Compression: s.compression,
		Fingerprint: set.Fingerprint(),
		Labels:      uint64(set.Len()),
	}
	err = writeHeader(w, hdr)
	if err == nil {
		err = encodePayload(w, s.compression, filePayload{
			Labels: set,
			Absent: absent,
			Rows:   m.RawRows(),
		})
	}
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return sterrors.NewCacheError("save", s.path, err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return sterrors.NewCacheError("save", s.path, err)
	}
	debug.LogCache("saved %d rows to %s (%s)\n", m.Rows(), s.path, s.compression)
	return nil
}

// Remove deletes the cache file; a missing file is not an error
func (s *FileStore) Remove() error {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	fl := s.lock()
	if err := fl.Lock(); err != nil {
		return sterrors.NewCacheError("remove", s.path, err)
	}
	defer func() { _ = fl.Unlock() }()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return sterrors.NewCacheError("remove", s.path, err)
	}
	return nil
}

// Inspect reads only the header of a cache file
func Inspect(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, sterrors.NewCacheError("inspect", path, err)
	}
	defer f.Close()

	hdr, err := readHeader(f)
	if err != nil {
		return Header{}, sterrors.NewCacheError("inspect", path, err)
	}
	return hdr, nil
}

// checkPayload rejects an absent set that disagrees with the stored labels
// and any ratio outside [0,1]. Uncompressed payloads carry no checksum.
func checkPayload(p filePayload, absent *roaring.Bitmap) error {
	want := roaring.New()
	for i, l := range p.Labels {
		if !l.Present {
			want.Add(uint32(i))
		}
	}
	if !absent.Equals(want) {
		return fmt.Errorf("absent set does not match labels (%d stored, %d expected)",
			absent.GetCardinality(), want.GetCardinality())
	}
	for i, row := range p.Rows {
		for j, r := range row {
			if math.IsNaN(r) || r < 0 || r > 1 {
				return fmt.Errorf("ratio %v at (%d, %d) is outside [0, 1]", r, i, j)
			}
		}
	}
	return nil
}

func writeHeader(w io.Writer, hdr Header) error {
	var buf [headerSize]byte
	copy(buf[:4], fileMagic)
	buf[4] = hdr.Version
	buf[5] = compressionCodes[hdr.Compression]
	binary.LittleEndian.PutUint64(buf[6:14], hdr.Fingerprint)
	binary.LittleEndian.PutUint64(buf[14:22], hdr.Labels)
	_, err := w.Write(buf[:])
	return err
}

func readHeader(r io.Reader) (Header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	if string(buf[:4]) != fileMagic {
		return Header{}, errors.New("not a ratio matrix cache file")
	}
	if buf[4] != formatVersion {
		return Header{}, fmt.Errorf("unsupported cache format version %d", buf[4])
	}
	c, ok := compressionFromCode(buf[5])
	if !ok {
		return Header{}, fmt.Errorf("unknown compression code %d", buf[5])
	}
	return Header{
		Version:     buf[4],
		Compression: c,
		Fingerprint: binary.LittleEndian.Uint64(buf[6:14]),
		Labels:      binary.LittleEndian.Uint64(buf[14:22]),
	}, nil
}

func encodePayload(w io.Writer, c Compression, p filePayload) error {
	switch c {
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		if err := gob.NewEncoder(enc).Encode(p); err != nil {
			_ = enc.Close()
			return err
		}
		return enc.Close()
	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		if err := gob.NewEncoder(zw).Encode(p); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	default:
		return gob.NewEncoder(w).Encode(p)
	}
}

func decodePayload(r io.Reader, c Compression) (filePayload, error) {
	var p filePayload
	switch c {
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return p, err
		}
		defer dec.Close()
		r = dec
	case CompressionLZ4:
		r = lz4.NewReader(r)
	}
	if err := gob.NewDecoder(r).Decode(&p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
