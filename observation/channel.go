package observation

import (
	"encoding/binary"
	"math"
	"os"

	"golang.org/x/sys/unix"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// Channel is one memory-mapped binary record file for a single
// (instrument, interval) pair. Records are read directly out of the
// mapped pages; no copy happens until a caller asks for a Record.
type Channel struct {
	path         string
	file         *os.File
	data         []byte
	featureWidth int
	stride       int
	count        int
	leftKey      int64
	rightKey     int64
}

// OpenChannel maps path read-only and validates it as a dense,
// monotonically non-decreasing sequence of featureWidth-wide records.
func OpenChannel(path string, featureWidth int) (*Channel, error) {
	if featureWidth <= 0 {
		return nil, errctx.New(errctx.CodeSchema, "channel %q: featureWidth must be positive", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "opening channel file %q", path)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errctx.Wrap(errctx.CodeIO, err, "stat channel file %q", path)
	}
	stride := recordStride(featureWidth)
	size := stat.Size()
	if size == 0 {
		f.Close()
		return nil, errctx.New(errctx.CodeSchema, "channel file %q is empty", path)
	}
	if size%int64(stride) != 0 {
		f.Close()
		return nil, errctx.New(errctx.CodeSchema, "channel file %q size %d is not a multiple of record stride %d", path, size, stride)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errctx.Wrap(errctx.CodeIO, err, "mmap channel file %q", path)
	}

	c := &Channel{
		path:         path,
		file:         f,
		data:         data,
		featureWidth: featureWidth,
		stride:       stride,
		count:        int(size / int64(stride)),
	}

	prev := c.keyAt(0)
	for i := 1; i < c.count; i++ {
		k := c.keyAt(i)
		if k < prev {
			unix.Munmap(data)
			f.Close()
			return nil, errctx.New(errctx.CodeSchema, "channel file %q: key sequence is not monotonic non-decreasing at index %d", path, i)
		}
		prev = k
	}
	c.leftKey = c.keyAt(0)
	c.rightKey = c.keyAt(c.count - 1)
	return c, nil
}

// Close unmaps the file and releases its descriptor.
func (c *Channel) Close() error {
	if err := unix.Munmap(c.data); err != nil {
		return errctx.Wrap(errctx.CodeIO, err, "munmap channel file %q", c.path)
	}
	if err := c.file.Close(); err != nil {
		return errctx.Wrap(errctx.CodeIO, err, "closing channel file %q", c.path)
	}
	return nil
}

// Len returns the number of records in the channel.
func (c *Channel) Len() int { return c.count }

// FeatureWidth returns the per-record feature count D.
func (c *Channel) FeatureWidth() int { return c.featureWidth }

// LeftKey and RightKey return the channel's leftmost/rightmost key.
func (c *Channel) LeftKey() int64  { return c.leftKey }
func (c *Channel) RightKey() int64 { return c.rightKey }

func (c *Channel) keyAt(i int) int64 {
	off := i * c.stride
	return int64(binary.LittleEndian.Uint64(c.data[off : off+8]))
}

// Get returns record i as a decoded tensor row.
func (c *Channel) Get(i int) (Record, error) {
	if i < 0 || i >= c.count {
		return Record{}, errctx.New(errctx.CodeRange, "channel %q: index %d out of range [0,%d)", c.path, i, c.count)
	}
	off := i * c.stride
	key := int64(binary.LittleEndian.Uint64(c.data[off : off+8]))
	feats := make([]float64, c.featureWidth)
	for j := 0; j < c.featureWidth; j++ {
		fo := off + 8 + j*8
		feats[j] = math.Float64frombits(binary.LittleEndian.Uint64(c.data[fo : fo+8]))
	}
	return Record{Key: key, Features: feats}, nil
}

// GetByKeyValue binary-searches for the largest index whose key is <= k.
func (c *Channel) GetByKeyValue(k int64) (int, bool) {
	lo, hi := 0, c.count-1
	res := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if c.keyAt(mid) <= k {
			res = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if res < 0 {
		return 0, false
	}
	return res, true
}

// GetSequenceEndingAtKeyValue returns the n records ending at the index
// matched by k. If fewer than n real records exist before the match, the
// window is left-padded with synthetic zero records and the validity mask
// marks only the real indices true.
func (c *Channel) GetSequenceEndingAtKeyValue(k int64, n int) ([]Record, []bool, error) {
	if n <= 0 {
		return nil, nil, errctx.New(errctx.CodeSchema, "sequence length n must be positive, got %d", n)
	}
	idx, ok := c.GetByKeyValue(k)
	if !ok {
		return nil, nil, errctx.New(errctx.CodeRange, "channel %q: no record with key <= %d", c.path, k)
	}
	records := make([]Record, n)
	mask := make([]bool, n)
	start := idx - n + 1
	for slot := 0; slot < n; slot++ {
		srcIdx := start + slot
		if srcIdx < 0 {
			records[slot] = Record{Features: make([]float64, c.featureWidth)}
			mask[slot] = false
			continue
		}
		rec, err := c.Get(srcIdx)
		if err != nil {
			return nil, nil, err
		}
		records[slot] = rec
		mask[slot] = true
	}
	return records, mask, nil
}
