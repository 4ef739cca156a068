package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/plan"
	apperrors "github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePartition() plan.Partition {
	gen1 := plan.Unit{Index: 1, Label: "창세기", GroupLabel: "1", Size: 3100}
	gen2 := plan.Unit{Index: 32, Label: "창세기", GroupLabel: "2", Size: 2500}
	exo1 := plan.Unit{Index: 81, Label: "출애굽기", GroupLabel: "1", Size: 1500}
	return plan.Partition{
		{Start: gen1, End: gen2, AccumulatedSize: 5600, Units: 2},
		{Start: exo1, End: exo1, AccumulatedSize: 1500, Units: 1},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(samplePartition())
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Day: 1, StartLabel: "창세기", StartChapter: "1", EndLabel: "창세기", EndChapter: "2", Size: 5600}, rows[0])
	assert.Equal(t, 2, rows[1].Day)
	assert.Equal(t, "출애굽기", rows[1].StartLabel)
}

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		lang   string
		header []string
	}{
		{LangKorean, []string{"날짜", "성경(시작)", "장(시작)", "성경(끝)", "장(끝)", "글 수"}},
		{LangEnglish, []string{"day", "start_label", "start_chapter", "end_label", "end_chapter", "accumulated_size"}},
		{"fr", []string{"날짜", "성경(시작)", "장(시작)", "성경(끝)", "장(끝)", "글 수"}},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, samplePartition(), tt.lang))

			records, err := csv.NewReader(&buf).ReadAll()
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, tt.header, records[0])
			assert.Equal(t, []string{"1", "창세기", "1", "창세기", "2", "5600"}, records[1])
			assert.Equal(t, []string{"2", "출애굽기", "1", "출애굽기", "1", "1500"}, records[2])
		})
	}
}

func TestWriteCSV_EmptyPartition(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, LangEnglish))
	assert.Equal(t, "day,start_label,start_chapter,end_label,end_chapter,accumulated_size\n", buf.String())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "성경통독표(365일).csv", FileName("성경통독표(%d일).csv", 365))
}

func TestFileSink_Emit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "result")
	reg := prometheus.NewRegistry()
	sink := NewFileSink(dir, "plan-%d.csv", LangKorean, metrics.NewWithRegistry(reg))

	art, err := sink.Emit(context.Background(), samplePartition(), 2)
	require.NoError(t, err)
	assert.Equal(t, "plan-2.csv", art.Name)
	assert.Equal(t, filepath.Join(dir, "plan-2.csv"), art.Path)
	assert.Equal(t, 2, art.Rows)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), art.Bytes)
	assert.Contains(t, string(data), "날짜,성경(시작)")

	// A second emit replaces the file and leaves no temp files behind.
	_, err = sink.Emit(context.Background(), samplePartition()[:1], 2)
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, _ = os.ReadFile(art.Path)
	r, _ := csv.NewReader(bytes.NewReader(data)).ReadAll()
	assert.Len(t, r, 2)
}

func TestFileSink_EmitFailure(t *testing.T) {
	// A regular file where the directory should be.
	parent := t.TempDir()
	blocker := filepath.Join(parent, "result")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	sink := NewFileSink(blocker, "plan-%d.csv", LangKorean, nil)
	_, err := sink.Emit(context.Background(), samplePartition(), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExportFailed)
}

func TestFileSink_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileSink(t.TempDir(), "plan-%d.csv", LangKorean, nil).Emit(ctx, samplePartition(), 2)
	assert.ErrorIs(t, err, context.Canceled)
}
