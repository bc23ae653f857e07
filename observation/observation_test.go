package observation_test

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuwacunu/tsiemene/observation"
)

func writeChannel(t *testing.T, path string, keys []int64, features [][]float64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for i, k := range keys {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(k))
		_, err := f.Write(buf[:])
		require.NoError(t, err)
		for _, v := range features[i] {
			var fb [8]byte
			binary.LittleEndian.PutUint64(fb[:], math.Float64bits(v))
			_, err := f.Write(fb[:])
			require.NoError(t, err)
		}
	}
}

func TestOpenChannelAndGet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.bin")
	writeChannel(t, path, []int64{100, 200, 300}, [][]float64{{1, 2}, {3, 4}, {5, 6}})

	ch, err := observation.OpenChannel(path, 2)
	require.NoError(t, err)
	defer ch.Close()

	require.Equal(t, 3, ch.Len())
	require.Equal(t, int64(100), ch.LeftKey())
	require.Equal(t, int64(300), ch.RightKey())

	rec, err := ch.Get(1)
	require.NoError(t, err)
	require.Equal(t, int64(200), rec.Key)
	require.Equal(t, []float64{3, 4}, rec.Features)
}

func TestGetByKeyValueFindsLargestLE(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.bin")
	writeChannel(t, path, []int64{100, 200, 300}, [][]float64{{1}, {2}, {3}})

	ch, err := observation.OpenChannel(path, 1)
	require.NoError(t, err)
	defer ch.Close()

	idx, ok := ch.GetByKeyValue(250)
	require.True(t, ok)
	require.Equal(t, 1, idx)

	_, ok = ch.GetByKeyValue(50)
	require.False(t, ok)
}

func TestGetSequenceEndingAtKeyValuePadsShortWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.bin")
	writeChannel(t, path, []int64{100, 200, 300}, [][]float64{{1}, {2}, {3}})

	ch, err := observation.OpenChannel(path, 1)
	require.NoError(t, err)
	defer ch.Close()

	recs, mask, err := ch.GetSequenceEndingAtKeyValue(300, 5)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	require.Equal(t, []bool{false, false, true, true, true}, mask)
	require.Equal(t, []float64{1}, recs[2].Features)
	require.Equal(t, []float64{3}, recs[4].Features)
}

func TestOpenChannelRejectsNonMonotonicKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.bin")
	writeChannel(t, path, []int64{100, 50, 300}, [][]float64{{1}, {2}, {3}})

	_, err := observation.OpenChannel(path, 1)
	require.Error(t, err)
}

func TestAlignStacksChannelsOfDifferingWidth(t *testing.T) {
	dir := t.TempDir()
	path1 := filepath.Join(dir, "a.bin")
	path2 := filepath.Join(dir, "b.bin")
	writeChannel(t, path1, []int64{100, 200, 300}, [][]float64{{1}, {2}, {3}})
	writeChannel(t, path2, []int64{100, 200, 300}, [][]float64{{1, 10}, {2, 20}, {3, 30}})

	ch1, err := observation.OpenChannel(path1, 1)
	require.NoError(t, err)
	defer ch1.Close()
	ch2, err := observation.OpenChannel(path2, 2)
	require.NoError(t, err)
	defer ch2.Close()

	sample, err := observation.Align([]*observation.Channel{ch1, ch2}, 300, 2)
	require.NoError(t, err)
	require.Len(t, sample.Features, 2)
	require.Len(t, sample.Features[0][0], 2) // padded to maxD=2
	require.Equal(t, []float64{2, 0}, sample.Features[0][0])
	require.Equal(t, []float64{3, 0}, sample.Features[0][1])
	require.Equal(t, []float64{2, 20}, sample.Features[1][0])
}

func TestWriteCSVToBinaryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "in.csv")
	binPath := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(csvPath, []byte("100,1.5,2.5\n200,3.5,4.5\nbad,row\n"), 0o644))

	skipped, err := observation.WriteCSVToBinary(csvPath, binPath, 2, 2)
	require.NoError(t, err)
	require.Equal(t, 1, skipped)

	recs, err := observation.ReadRecords(binPath, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, int64(100), recs[0].Key)
	require.Equal(t, []float64{1.5, 2.5}, recs[0].Features)
}

func TestChunkedReaderStreamsInBuffers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.bin")
	writeChannel(t, path, []int64{1, 2, 3, 4, 5}, [][]float64{{1}, {2}, {3}, {4}, {5}})

	r, err := observation.NewChunkedReader(path, 1, 2)
	require.NoError(t, err)
	defer r.Close()

	var total int
	for {
		chunk, err := r.Next()
		if err != nil {
			break
		}
		total += len(chunk)
	}
	require.Equal(t, 5, total)
}

func TestChannelNaming(t *testing.T) {
	require.Equal(t, "BTCUSD_1m", observation.ChannelKey("BTCUSD", "1m"))
	require.Equal(t, filepath.Join("/root", "BTCUSD_1m.bin"), observation.ChannelFileName("/root", "BTCUSD", "1m"))
}
