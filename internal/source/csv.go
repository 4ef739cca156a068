package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/plan"
)

// csvColumns is the expected header of a chapter CSV file.
var csvColumns = []string{"index", "label", "chapter", "size"}

// CSVSource reads chapters from a file with the columns
// index,label,chapter,size. The header row is required.
type CSVSource struct {
	path string
}

func NewCSV(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) FetchUnits(ctx context.Context) (plan.UnitList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening chapter file: %w", err)
	}
	defer f.Close()
	units, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return units, nil
}

// ReadCSV parses a chapter list and checks it with Validate.
func ReadCSV(r io.Reader) (plan.UnitList, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvColumns)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return plan.UnitList{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, col := range csvColumns {
		if !strings.EqualFold(strings.TrimPrefix(header[i], "\ufeff"), col) {
			return nil, fmt.Errorf("unexpected header column %d: got %q, want %q", i+1, header[i], col)
		}
	}

	var units plan.UnitList
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		idx, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid index %q", line, rec[0])
		}
		size, err := strconv.ParseInt(rec[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid size %q", line, rec[3])
		}
		units = append(units, plan.Unit{Index: idx, Label: rec[1], GroupLabel: rec[2], Size: size})
	}
	if err := Validate(units); err != nil {
		return nil, err
	}
	return units, nil
}

// WriteCSV writes units in the format ReadCSV accepts.
func WriteCSV(w io.Writer, units plan.UnitList) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return err
	}
	for _, u := range units {
		rec := []string{
			strconv.FormatInt(u.Index, 10),
			u.Label,
			u.GroupLabel,
			strconv.FormatInt(u.Size, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
