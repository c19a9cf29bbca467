// Package export writes dashboard tables as spreadsheet-friendly CSV.
package export

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const bom = "\ufeff"

// Filename returns "<dataset>_<YYYY-MM-DD>.csv".
func Filename(dataset string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", dataset, now.Format("2006-01-02"))
}

// WriteCSV writes a BOM-prefixed CSV where every field is quoted and rows
// end in CRLF.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(bom); err != nil {
		return err
	}
	if err := writeRecord(bw, header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeRecord(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeRecord(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quote(f)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Serve sends a CSV download for dataset.
func Serve(w http.ResponseWriter, dataset string, now time.Time, header []string, rows [][]string) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, Filename(dataset, now)))
	w.Header().Set("Cache-Control", "no-store")
	return WriteCSV(w, header, rows)
}
