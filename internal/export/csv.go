// Package export serialises the billing data for the outside world: CSV
// report downloads, JSON backups with their inverse import, and the PDF
// statement of a close cycle.
package export

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/andamio-erp/andamio-erp/internal/billing"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

var csvHeader = []string{
	"codigo", "empresa", "encargado", "central", "contrato", "descripcion",
	"fecha", "estado", "importeBase", "plus", "importeUnidades", "iva",
	"liquido", "totalConIVA", "numeroFactura",
}

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer}
}

func (s *csvStreamer) writeComment(line string) error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n") + "\r\n"
	}
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.pendingLines >= csvFlushEvery {
		return s.flush()
	}
	return nil
}

func (s *csvStreamer) flush() error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	s.pendingLines = 0
	return s.buf.Flush()
}

// WriteReportCSV streams the aggregated report: one comment line per group,
// the group's records, a subtotal row, and a closing grand-total row.
func WriteReportCSV(w io.Writer, rep billing.Report) error {
	s := newCSVStreamer(w)
	if err := s.writeRow(csvHeader); err != nil {
		return err
	}
	for _, group := range rep.Groups {
		if group.Key != "" {
			if err := s.writeComment("# " + group.Key); err != nil {
				return err
			}
		}
		for _, rec := range group.Records {
			if err := s.writeRow(recordRow(rec)); err != nil {
				return err
			}
		}
		if err := s.writeRow(totalsRow("subtotal "+group.Key, group.Subtotal)); err != nil {
			return err
		}
	}
	if err := s.writeRow(totalsRow("total general", rep.GrandTotal)); err != nil {
		return err
	}
	return s.flush()
}

func recordRow(rec billing.WorkRecord) []string {
	totals := billing.ComputeRecord(rec)
	date := ""
	if !rec.Date.IsZero() {
		date = rec.Date.Format("2006-01-02")
	}
	return []string{
		rec.Code,
		rec.Company,
		rec.Supervisor,
		rec.Zone,
		rec.Contract,
		rec.Description,
		date,
		string(rec.Status),
		rec.Base.StringFixed(2),
		totals.Surcharge.StringFixed(2),
		totals.UnitFee.StringFixed(2),
		totals.VAT.StringFixed(2),
		totals.Net.StringFixed(2),
		totals.Gross.StringFixed(2),
		rec.InvoiceNumber,
	}
}

func totalsRow(label string, t billing.Totals) []string {
	return []string{
		strings.TrimSpace(label), "", "", "", "", "", "", "",
		t.Base.StringFixed(2),
		t.Surcharge.StringFixed(2),
		t.UnitFee.StringFixed(2),
		t.VAT.StringFixed(2),
		t.Net.StringFixed(2),
		t.Gross.StringFixed(2),
		"",
	}
}

// FileName builds a timestamped download name like informe-20260331.csv.
func FileName(prefix, ext string, at time.Time) string {
	return prefix + "-" + at.Format("20060102") + "." + ext
}
