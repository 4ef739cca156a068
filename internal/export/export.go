// Package export renders a partition as a daily reading schedule in CSV form,
// either streamed to a writer or stored under a result directory.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/plan"
)

const (
	LangKorean  = "ko"
	LangEnglish = "en"
)

var headers = map[string][]string{
	LangKorean:  {"날짜", "성경(시작)", "장(시작)", "성경(끝)", "장(끝)", "글 수"},
	LangEnglish: {"day", "start_label", "start_chapter", "end_label", "end_chapter", "accumulated_size"},
}

// Header returns the CSV header row for lang. Unknown languages fall back to
// Korean.
func Header(lang string) []string {
	if h, ok := headers[lang]; ok {
		return h
	}
	return headers[LangKorean]
}

// Row is one day of the schedule.
type Row struct {
	Day          int    `json:"day"`
	StartLabel   string `json:"start_label"`
	StartChapter string `json:"start_chapter"`
	EndLabel     string `json:"end_label"`
	EndChapter   string `json:"end_chapter"`
	Size         int64  `json:"accumulated_size"`
}

// Rows converts a partition to schedule rows, numbering days from 1.
func Rows(p plan.Partition) []Row {
	rows := make([]Row, len(p))
	for i, g := range p {
		rows[i] = Row{
			Day:          i + 1,
			StartLabel:   g.Start.Label,
			StartChapter: g.Start.GroupLabel,
			EndLabel:     g.End.Label,
			EndChapter:   g.End.GroupLabel,
			Size:         g.AccumulatedSize,
		}
	}
	return rows
}

func (r Row) record() []string {
	return []string{
		strconv.Itoa(r.Day),
		r.StartLabel,
		r.StartChapter,
		r.EndLabel,
		r.EndChapter,
		strconv.FormatInt(r.Size, 10),
	}
}

// WriteCSV writes the header and one record per group to w.
func WriteCSV(w io.Writer, p plan.Partition, lang string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(lang)); err != nil {
		return err
	}
	for _, r := range Rows(p) {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName formats pattern with the day count.
func FileName(pattern string, days int) string {
	return fmt.Sprintf(pattern, days)
}

// Artifact describes an emitted schedule.
type Artifact struct {
	Name  string `json:"name"`
	Path  string `json:"path,omitempty"`
	Rows  int    `json:"rows"`
	Bytes int64  `json:"bytes"`
}

// Sink consumes a finished partition.
type Sink interface {
	Emit(ctx context.Context, p plan.Partition, days int) (Artifact, error)
}
