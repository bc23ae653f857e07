package observation

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// WriteCSVToBinary converts a CSV file into the fixed-width binary record
// format a Channel expects: each row's first field is the int64 key, the
// remaining fields are the feature vector in order. Rows are buffered
// bufferSize at a time before each flush, and a malformed row is skipped
// and counted in the returned skipped total (its error is not kept) rather
// than aborting the whole conversion,
// following dfiles.h's csvFile_to_binary.
func WriteCSVToBinary(csvPath, binPath string, featureWidth, bufferSize int) (skipped int, err error) {
	if bufferSize <= 0 {
		return 0, errctx.New(errctx.CodeSchema, "bufferSize must be positive")
	}
	in, err := os.Open(csvPath)
	if err != nil {
		return 0, errctx.Wrap(errctx.CodeIO, err, "opening CSV %q", csvPath)
	}
	defer in.Close()

	out, err := os.Create(binPath)
	if err != nil {
		return 0, errctx.Wrap(errctx.CodeIO, err, "creating binary file %q", binPath)
	}
	defer out.Close()

	w := bufio.NewWriterSize(out, bufferSize*recordStride(featureWidth))
	defer w.Flush()

	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	lineNumber := 0
	stride := recordStride(featureWidth)
	buf := make([]byte, stride)
	for {
		row, readErr := r.Read()
		if readErr == io.EOF {
			break
		}
		lineNumber++
		if readErr != nil {
			skipped++
			continue
		}
		if len(row) != featureWidth+1 {
			skipped++
			continue
		}
		key, perr := strconv.ParseInt(row[0], 10, 64)
		if perr != nil {
			skipped++
			continue
		}
		binary.LittleEndian.PutUint64(buf[0:8], uint64(key))
		ok := true
		for j := 0; j < featureWidth; j++ {
			v, perr := strconv.ParseFloat(row[j+1], 64)
			if perr != nil {
				ok = false
				break
			}
			binary.LittleEndian.PutUint64(buf[8+j*8:8+j*8+8], math.Float64bits(v))
		}
		if !ok {
			skipped++
			continue
		}
		if _, werr := w.Write(buf); werr != nil {
			return skipped, errctx.Wrap(errctx.CodeIO, werr, "writing binary record at line %d", lineNumber)
		}
	}
	if err := w.Flush(); err != nil {
		return skipped, errctx.Wrap(errctx.CodeIO, err, "flushing binary file %q", binPath)
	}
	return skipped, nil
}

// ReadRecords reads every record from a binary channel file into memory
// without memory-mapping, for offline tooling that needs the whole file
// materialized. Ported from dfiles.h's binaryFile_to_vector.
func ReadRecords(path string, featureWidth int) ([]Record, error) {
	r, err := NewChunkedReader(path, featureWidth, 4096)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var all []Record
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		all = append(all, chunk...)
	}
	return all, nil
}

// ChunkedReader streams records from a binary channel file bufferSize at a
// time, matching dlarge_files.h's chunked read loop without loading the
// whole file into memory at once.
type ChunkedReader struct {
	f            *os.File
	featureWidth int
	stride       int
	bufferSize   int
	buf          []byte
}

// NewChunkedReader opens path for chunked reading, validating its size is
// a multiple of the record stride.
func NewChunkedReader(path string, featureWidth, bufferSize int) (*ChunkedReader, error) {
	if bufferSize <= 0 {
		return nil, errctx.New(errctx.CodeSchema, "bufferSize must be positive")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "opening binary file %q", path)
	}
	stride := recordStride(featureWidth)
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errctx.Wrap(errctx.CodeIO, err, "stat binary file %q", path)
	}
	if stat.Size()%int64(stride) != 0 {
		f.Close()
		return nil, errctx.New(errctx.CodeSchema, "binary file %q size is not a multiple of record stride %d", path, stride)
	}
	return &ChunkedReader{
		f:            f,
		featureWidth: featureWidth,
		stride:       stride,
		bufferSize:   bufferSize,
		buf:          make([]byte, bufferSize*stride),
	}, nil
}

// Next reads up to bufferSize records, returning io.EOF once the file is
// exhausted.
func (r *ChunkedReader) Next() ([]Record, error) {
	n, err := io.ReadFull(r.f, r.buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errctx.Wrap(errctx.CodeIO, err, "reading binary chunk")
	}
	if n == 0 {
		return nil, io.EOF
	}
	if n%r.stride != 0 {
		return nil, errctx.New(errctx.CodeSchema, "partial record at end of chunk: read %d bytes, stride %d", n, r.stride)
	}
	count := n / r.stride
	out := make([]Record, count)
	for i := 0; i < count; i++ {
		off := i * r.stride
		key := int64(binary.LittleEndian.Uint64(r.buf[off : off+8]))
		feats := make([]float64, r.featureWidth)
		for j := 0; j < r.featureWidth; j++ {
			fo := off + 8 + j*8
			feats[j] = math.Float64frombits(binary.LittleEndian.Uint64(r.buf[fo : fo+8]))
		}
		out[i] = Record{Key: key, Features: feats}
	}
	return out, nil
}

// Close releases the underlying file descriptor.
func (r *ChunkedReader) Close() error {
	if err := r.f.Close(); err != nil {
		return errctx.Wrap(errctx.CodeIO, err, "closing chunked reader")
	}
	return nil
}
