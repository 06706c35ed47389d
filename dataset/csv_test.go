package dataset

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSVFromReader(t *testing.T) {
	csvData := `timestamp,segment,target,promo
2020-01-01,A,100,0
2020-01-01,B,200,1
2020-01-02,A,101,1
2020-01-02,B,201,0
2020-01-03,A,102,0`

	ds, err := LoadCSVFromReader(strings.NewReader(csvData), DefaultCSVOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 24*time.Hour, ds.Freq())
	assert.Equal(t, []string{"A", "B"}, ds.Segments())
	assert.Equal(t, []string{TargetColumn, "promo"}, ds.Columns())

	a, _ := ds.Column("A", TargetColumn)
	assert.Equal(t, []float64{100, 101, 102}, a)
	assert.True(t, math.IsNaN(ds.Value("B", TargetColumn, 2)))
}

func TestLoadCSVWithoutSegment(t *testing.T) {
	csvData := `ds,y
2020-01-01,100
2020-01-02,NA
2020-01-04,103`

	opts := DefaultCSVOptions()
	opts.ValueColumn = "y"

	ds, err := LoadCSVFromReader(strings.NewReader(csvData), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultSegment}, ds.Segments())
	assert.Equal(t, 4, ds.Len(), "missing day is filled")
	assert.True(t, math.IsNaN(ds.Value(DefaultSegment, TargetColumn, 1)))
	assert.True(t, math.IsNaN(ds.Value(DefaultSegment, TargetColumn, 2)))
	assert.Equal(t, 103.0, ds.Value(DefaultSegment, TargetColumn, 3))
}

func TestLoadCSVSegmentFilter(t *testing.T) {
	csvData := `unique_id,ds,target
A,2020-01-01,100
B,2020-01-01,200
A,2020-01-02,101`

	opts := DefaultCSVOptions()
	opts.SegmentFilter = "A"

	ds, err := LoadCSVFromReader(strings.NewReader(csvData), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ds.Segments())
	assert.Equal(t, 2, ds.Len())
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no date column", "a,b\n1,2"},
		{"no rows", "timestamp,target\n"},
		{"bad date", "timestamp,target\nyesterday,1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSVFromReader(strings.NewReader(tt.data), nil)
			assert.Error(t, err)
		})
	}
}

func TestCSVRoundTrip(t *testing.T) {
	ds := sample(t)
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, SaveCSV(ds, path))

	loaded, err := LoadCSV(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ds.Segments(), loaded.Segments())
	assert.Equal(t, ds.Len(), loaded.Len())
	for _, seg := range ds.Segments() {
		want, _ := ds.Column(seg, TargetColumn)
		got, _ := loaded.Column(seg, TargetColumn)
		assert.Equal(t, want, got)
	}
}

func TestWriteCSVBlankForNaN(t *testing.T) {
	ds := New(day, start, 2)
	require.NoError(t, ds.Set("a", TargetColumn, []float64{1, math.NaN()}))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(ds, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2020-01-02T00:00:00Z,a,", lines[2])
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(os.TempDir(), "does-not-exist.csv"), nil)
	assert.Error(t, err)
}
