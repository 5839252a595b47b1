package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarabennett2626/logtrail/internal/parser"
)

func recordLines(from, to int) string {
	var b strings.Builder
	for i := from; i < to; i++ {
		b.WriteString(recordLine(i))
	}
	return b.String()
}

func TestLoadTailWindowBoundedByBudget(t *testing.T) {
	const total = 100_000
	data := recordLines(0, total)
	lineLen := int64(len(recordLine(total - 1)))
	budget := 500 * lineLen

	dec := parser.DecodeLines(strings.NewReader(data))
	records, err := loadTailWindow(context.Background(), dec, int64(len(data)), budget, 10_000)
	require.NoError(t, err)

	require.NotEmpty(t, records)
	assert.LessOrEqual(t, len(records), 501)
	assert.GreaterOrEqual(t, len(records), 499)
	assert.Equal(t, total-1, seqOf(t, records[len(records)-1]))
	assert.GreaterOrEqual(t, records[0].Offset, int64(len(data))-budget)
	assertContiguous(t, records)
}

func TestLoadTailWindowCappedByLimit(t *testing.T) {
	data := recordLines(0, 1000)
	dec := parser.DecodeLines(strings.NewReader(data))

	records, err := loadTailWindow(context.Background(), dec, int64(len(data)), int64(len(data)), 100)
	require.NoError(t, err)
	require.Len(t, records, 100)
	assert.Equal(t, 900, seqOf(t, records[0]))
	assert.Equal(t, 999, seqOf(t, records[99]))
	assertContiguous(t, records)
}

func TestLoadTailWindowSmallFile(t *testing.T) {
	data := recordLines(0, 5)
	dec := parser.DecodeLines(strings.NewReader(data))

	records, err := loadTailWindow(context.Background(), dec, int64(len(data)), 1<<20, 100)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, 0, seqOf(t, records[0]))
}

func TestLoadTailWindowZeroLimit(t *testing.T) {
	dec := parser.DecodeLines(strings.NewReader(recordLines(0, 5)))
	records, err := loadTailWindow(context.Background(), dec, 100, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

var errBrokenDisk = errors.New("broken disk")

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errBrokenDisk }

func TestLoadTailWindowReturnsPartialOnError(t *testing.T) {
	r := io.MultiReader(strings.NewReader(recordLines(0, 3)), failingReader{})
	records, err := loadTailWindow(context.Background(), parser.DecodeLines(r), 1<<20, 1<<20, 100)
	require.ErrorIs(t, err, errBrokenDisk)
	assert.Len(t, records, 3)
}

func TestLoadTailWindowCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data := recordLines(0, 5000)

	_, err := loadTailWindow(ctx, parser.DecodeLines(strings.NewReader(data)), int64(len(data)), 1<<30, 100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(recordLines(0, 50)), 0o644))

	records, err := ReadTail(context.Background(), path, FileConfig{TailRecords: 10})
	require.NoError(t, err)
	require.Len(t, records, 10)
	assert.Equal(t, 40, seqOf(t, records[0]))

	_, err = ReadTail(context.Background(), filepath.Join(t.TempDir(), "missing.log"), FileConfig{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResyncFindsFirstStrictlyNewer(t *testing.T) {
	data := recordLines(0, 10)
	dec := parser.DecodeLines(strings.NewReader(data))

	rec, found, err := resync(context.Background(), dec, ts(4))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5, seqOf(t, rec))

	ok, err := dec.MoveNext()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 6, seqOf(t, dec.Current()), "locator leaves the decoder just past its match")
}

func TestResyncSkipsEqualTimestamps(t *testing.T) {
	data := recordLine(1) + recordLine(1) + recordLine(2)
	rec, found, err := resync(context.Background(), parser.DecodeLines(strings.NewReader(data)), ts(1))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, seqOf(t, rec))
}

func TestResyncNothingNewer(t *testing.T) {
	data := recordLines(0, 10)
	dec := parser.DecodeLines(strings.NewReader(data))

	_, found, err := resync(context.Background(), dec, ts(9))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(len(data)), dec.Offset())
}

func TestResyncCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := resync(ctx, parser.DecodeLines(strings.NewReader(recordLines(0, 3000))), ts(5000))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResyncAcrossInterleavedTimestamps(t *testing.T) {
	tests := []struct {
		name      string
		file      []int
		last      int
		want      int
		wantFound bool
	}{
		{"older records before the match are skipped", []int{5, 3, 4, 6, 2}, 5, 6, true},
		{"first newer wins even if a later one is newer still", []int{1, 7, 6, 9}, 5, 7, true},
		{"backwards tail holds nothing newer", []int{5, 3}, 5, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := parser.DecodeLines(strings.NewReader(linesAt(tt.file...)))
			rec, found, err := resync(context.Background(), dec, ts(tt.last))
			require.NoError(t, err)
			require.Equal(t, tt.wantFound, found)
			if found {
				assert.Equal(t, tt.want, seqOf(t, rec))
			}
		})
	}
}

// The loader keeps file order; dropping records that go backwards is the
// supervisor's job.
func TestLoadTailWindowKeepsFileOrder(t *testing.T) {
	data := linesAt(5, 3, 6)
	dec := parser.DecodeLines(strings.NewReader(data))

	records, err := loadTailWindow(context.Background(), dec, int64(len(data)), int64(len(data)), 10)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 3, 6}, seqsOf(t, records))
}
