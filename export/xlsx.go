// Package export renders run results as spreadsheets for the finance team.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/metrics"
	"github.com/librecode/producao/payroll"
)

const (
	SummarySheet    = "summary"
	SnapshotsSheet  = "workers"
	AllocationSheet = "allocation"
)

// snapshotHeader is the column order of the workers sheet.
var snapshotHeader = []string{
	"Worker", "Name", "Kind", "Base", "Vacation reserve", "Stipend",
	"Gross after reserve and stipend", "INSS", "IRPF", "Tax mode", "Taxable base",
	"Health insurance", "Advances", "Net", "Payment date",
}

// BuildRunXLSX renders a run: a summary sheet, one row per worker document,
// and the per-client allocation lines.
func BuildRunXLSX(res *payroll.RunResult) ([]byte, error) {
	data, err := buildRunXLSX(res)
	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultError
	}
	metrics.IncExport("xlsx", outcome)
	return data, err
}

func buildRunXLSX(res *payroll.RunResult) ([]byte, error) {
	if res == nil || res.Allocation == nil {
		return nil, fmt.Errorf("export: empty run result")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SnapshotsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(AllocationSheet); err != nil {
		return nil, err
	}

	alloc := res.Allocation
	summary := [][]any{
		{"Run", res.RunID},
		{"Work month", res.Period.Key()},
		{"Mode", string(res.Mode)},
		{"Payment date", res.PaymentDate.Date.Format(time.DateOnly)},
		{"Payment date clipped", res.PaymentDate.Clipped},
		{"Business days", alloc.BusinessDays},
		{"Client revenue", money(alloc.TotalClientRevenue)},
		{"Client cost", money(alloc.TotalClientCost)},
		{"Net revenue", money(alloc.TotalNetRevenue)},
		{"Internal overhead", money(alloc.TotalInternalOverhead)},
		{"Admin fee", money(alloc.AdminFee)},
		{"Admin %", money(alloc.AdminPercent)},
		{"Internal %", money(alloc.InternalPercent)},
		{"Pool", money(alloc.Pool)},
		{"Distributed", money(alloc.Distributed)},
		{"Surplus", money(alloc.Surplus)},
	}
	_ = f.SetCellValue(SummarySheet, "A1", "Production allocation")
	for i, row := range summary {
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+3), &row); err != nil {
			return nil, err
		}
	}

	header := make([]any, len(snapshotHeader))
	for i, h := range snapshotHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(SnapshotsSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, s := range res.Snapshots {
		row := []any{
			string(s.WorkerID), s.Name, string(s.Kind),
			money(s.Base), money(s.VacationReserve), money(s.Stipend),
			money(s.GrossAfterReserveAndStipend), money(s.Contribution), money(s.IncomeTax),
			string(s.TaxMode), money(s.TaxableBase), money(s.HealthInsurance),
			money(s.TotalAdvances), money(s.Net), s.PaymentDate.Format(time.DateOnly),
		}
		if err := f.SetSheetRow(SnapshotsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	_ = f.SetSheetRow(AllocationSheet, "A1", &[]any{"Worker", "Client", "Hours", "Percent", "Amount"})
	for i, l := range alloc.Lines {
		row := []any{
			string(l.WorkerID), string(l.ClientID),
			money(decimal.NewFromInt(l.Seconds).Div(decimal.NewFromInt(3600))),
			money(l.Percent), money(l.Amount),
		}
		if err := f.SetSheetRow(AllocationSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// money rounds for display and hands excelize a number, not a string.
func money(d decimal.Decimal) float64 {
	return generic.RoundCurrency(d).InexactFloat64()
}
