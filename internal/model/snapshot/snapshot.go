// Package snapshot persists a built model so a service can start without
// recomputing the similarity matrix.
//
// File layout (.cmsnap, little endian):
//
//	header   64 bytes  magic "CMSN", version, items, vocabulary, created-at,
//	                   catalog offset/size, matrix offset/size
//	catalog  JSON      fingerprint, options, build info, items
//	matrix   n*n*8     float64 values, row major
//	footer   16 bytes  CRC32 of catalog, CRC32 of matrix, item count
//
// Files are written to a .tmp path and renamed into place.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

const (
	Magic         uint32 = 0x4E534D43 // "CMSN"
	FormatVersion uint32 = 1
	HeaderSize           = 64
	FooterSize           = 16
	Extension            = ".cmsnap"
)

// Header is the fixed-size header at the start of every snapshot.
type Header struct {
	Magic         uint32
	Version       uint32
	ItemCount     uint32
	VocabSize     uint32
	CreatedAt     int64
	CatalogOffset int64
	CatalogSize   int64
	MatrixOffset  int64
	MatrixSize    int64
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.ItemCount)
	binary.LittleEndian.PutUint32(b[12:16], h.VocabSize)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.CatalogOffset))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.CatalogSize))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.MatrixOffset))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.MatrixSize))
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:         binary.LittleEndian.Uint32(b[0:4]),
		Version:       binary.LittleEndian.Uint32(b[4:8]),
		ItemCount:     binary.LittleEndian.Uint32(b[8:12]),
		VocabSize:     binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:     int64(binary.LittleEndian.Uint64(b[16:24])),
		CatalogOffset: int64(binary.LittleEndian.Uint64(b[24:32])),
		CatalogSize:   int64(binary.LittleEndian.Uint64(b[32:40])),
		MatrixOffset:  int64(binary.LittleEndian.Uint64(b[40:48])),
		MatrixSize:    int64(binary.LittleEndian.Uint64(b[48:56])),
	}
}

// catalogSection is the JSON body between header and matrix.
type catalogSection struct {
	Fingerprint   string         `json:"fingerprint"`
	Source        string         `json:"source"`
	BuiltAt       time.Time      `json:"built_at"`
	BuildDuration time.Duration  `json:"build_duration"`
	Options       model.Options  `json:"options"`
	Items         []catalog.Item `json:"items"`
}

// Summary describes a snapshot without loading its matrix.
type Summary struct {
	Path        string
	Header      Header
	Fingerprint string
	Source      string
	BuiltAt     time.Time
	Options     model.Options
	FileSize    int64
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrSnapshotCorrupt, fmt.Sprintf(format, args...))
}

// FileName returns the canonical snapshot file name for a model.
func FileName(m *model.Model) string {
	fp := m.Fingerprint()
	if len(fp) > 12 {
		fp = fp[:12]
	}
	return "model_" + fp + Extension
}

// Write stores m in dir under FileName(m) and returns the final path.
func Write(dir string, m *model.Model) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	path := filepath.Join(dir, FileName(m))
	if err := WriteFile(path, m); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFile stores m at path, replacing any existing file atomically.
func WriteFile(path string, m *model.Model) error {
	info := m.Info()
	section := catalogSection{
		Fingerprint:   info.Fingerprint,
		Source:        info.Source,
		BuiltAt:       info.BuiltAt,
		BuildDuration: info.BuildDuration,
		Options:       info.Options,
		Items:         m.Catalog().Items(),
	}
	catalogData, err := json.Marshal(section)
	if err != nil {
		return fmt.Errorf("marshaling catalog section: %w", err)
	}
	n := m.Len()
	header := Header{
		Magic:         Magic,
		Version:       FormatVersion,
		ItemCount:     uint32(n),
		VocabSize:     uint32(info.VocabularySize),
		CreatedAt:     time.Now().Unix(),
		CatalogOffset: HeaderSize,
		CatalogSize:   int64(len(catalogData)),
		MatrixOffset:  HeaderSize + int64(len(catalogData)),
		MatrixSize:    int64(n) * int64(n) * 8,
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()
	defer os.Remove(tmpPath)

	w := bufio.NewWriterSize(f, 1<<20)
	if _, err := w.Write(header.encode()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := w.Write(catalogData); err != nil {
		return fmt.Errorf("writing catalog section: %w", err)
	}
	matrixCRC := crc32.NewIEEE()
	mw := io.MultiWriter(w, matrixCRC)
	buf := make([]byte, 8)
	for _, v := range m.Matrix().Data() {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		if _, err := mw.Write(buf); err != nil {
			return fmt.Errorf("writing matrix: %w", err)
		}
	}
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(catalogData))
	binary.LittleEndian.PutUint32(footer[4:8], matrixCRC.Sum32())
	binary.LittleEndian.PutUint64(footer[8:16], uint64(n))
	if _, err := w.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	slog.Default().With("component", "snapshot").Info("snapshot written",
		"path", path,
		"items", n,
		"bytes", HeaderSize+header.CatalogSize+header.MatrixSize+FooterSize,
	)
	return nil
}

type opened struct {
	file    *os.File
	size    int64
	header  Header
	footer  []byte
	section catalogSection
}

func open(path string) (*opened, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	o, err := readMeta(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return o, nil
}

func readMeta(f *os.File) (*opened, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	size := st.Size()
	if size < HeaderSize+FooterSize {
		return nil, corrupt("file is %d bytes, shorter than header and footer", size)
	}
	hb := make([]byte, HeaderSize)
	if _, err := f.ReadAt(hb, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	h := decodeHeader(hb)
	if h.Magic != Magic {
		return nil, corrupt("bad magic bytes %x", h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, corrupt("unsupported format version %d", h.Version)
	}
	n := int64(h.ItemCount)
	if h.CatalogOffset != HeaderSize ||
		h.MatrixOffset != h.CatalogOffset+h.CatalogSize ||
		h.MatrixSize != n*n*8 ||
		h.MatrixOffset+h.MatrixSize+FooterSize != size {
		return nil, corrupt("section layout does not match header (items %d, file %d bytes)", n, size)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, size-FooterSize); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if got := int64(binary.LittleEndian.Uint64(footer[8:16])); got != n {
		return nil, corrupt("footer item count %d, header %d", got, n)
	}

	catalogData := make([]byte, h.CatalogSize)
	if _, err := f.ReadAt(catalogData, h.CatalogOffset); err != nil {
		return nil, fmt.Errorf("reading catalog section: %w", err)
	}
	if crc32.ChecksumIEEE(catalogData) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, corrupt("catalog checksum mismatch")
	}
	var section catalogSection
	if err := json.Unmarshal(catalogData, &section); err != nil {
		return nil, corrupt("parsing catalog section: %v", err)
	}
	if int64(len(section.Items)) != n {
		return nil, corrupt("catalog holds %d items, header %d", len(section.Items), n)
	}
	return &opened{file: f, size: size, header: h, footer: footer, section: section}, nil
}

// Inspect validates the header and catalog section of a snapshot.
func Inspect(path string) (*Summary, error) {
	o, err := open(path)
	if err != nil {
		return nil, err
	}
	defer o.file.Close()
	return &Summary{
		Path:        path,
		Header:      o.header,
		Fingerprint: o.section.Fingerprint,
		Source:      o.section.Source,
		BuiltAt:     o.section.BuiltAt,
		Options:     o.section.Options,
		FileSize:    o.size,
	}, nil
}

// Read loads and fully validates a snapshot.
func Read(path string) (*model.Model, error) {
	o, err := open(path)
	if err != nil {
		return nil, err
	}
	defer o.file.Close()

	n := int(o.header.ItemCount)
	data := make([]float64, n*n)
	crc := crc32.NewIEEE()
	r := bufio.NewReaderSize(io.TeeReader(io.NewSectionReader(o.file, o.header.MatrixOffset, o.header.MatrixSize), crc), 1<<20)
	buf := make([]byte, 8)
	for k := range data {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, corrupt("reading matrix value %d: %v", k, err)
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(buf))
		if math.IsNaN(v) || v < -1 || v > 1 {
			return nil, corrupt("matrix value %d out of range: %v", k, v)
		}
		data[k] = v
	}
	if crc.Sum32() != binary.LittleEndian.Uint32(o.footer[4:8]) {
		return nil, corrupt("matrix checksum mismatch")
	}

	cat := catalog.New(o.section.Items)
	if fp := cat.Fingerprint(o.section.Options.Key()); fp != o.section.Fingerprint {
		return nil, corrupt("fingerprint mismatch: stored %s, computed %s", o.section.Fingerprint, fp)
	}
	matrix, err := similarity.NewMatrix(n, data)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	m, err := model.New(cat, matrix, model.Info{
		Source:         "snapshot:" + path,
		VocabularySize: int(o.header.VocabSize),
		Fingerprint:    o.section.Fingerprint,
		BuiltAt:        o.section.BuiltAt,
		BuildDuration:  o.section.BuildDuration,
		Options:        o.section.Options,
	})
	if err != nil {
		return nil, corrupt("%v", err)
	}
	slog.Default().With("component", "snapshot").Info("snapshot loaded",
		"path", path,
		"items", n,
		"fingerprint", o.section.Fingerprint,
	)
	return m, nil
}
