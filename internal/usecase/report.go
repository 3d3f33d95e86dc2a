package usecase

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"Volatile/internal/domain/models"
	"Volatile/internal/services/trend"

	"github.com/xuri/excelize/v2"
)

const (
	tableWidth = 141
	tableRow   = "%-15s %-26s %-42s %-24s %-22s %-5s\n"
)

var (
	tableHeader = []string{"SYMBOL", "SECTOR", "INDUSTRY", "LAST AVAILABLE PRICE", "RATE", "GROWTH"}
	separator   = strings.Repeat("-", tableWidth)
)

// FormatPrice renders a price rounded to cents with its currency.
func FormatPrice(p float64, cur string) string {
	return strconv.FormatFloat(math.Round(p*100)/100, 'f', -1, 64) + " " + cur
}

// FormatGrowth renders a growth rate as a signed percentage.
func FormatGrowth(g float64) string {
	sign := ""
	if g >= 0 {
		sign = "+"
	}
	return sign + strconv.FormatFloat(math.Round(g*1e4)/100, 'f', -1, 64) + "%"
}

// WriteTable prints the ranked prediction table. Rows are separated by a
// dashed line and rating groups by a double one.
func WriteTable(w io.Writer, est *models.Estimation) error {
	var b strings.Builder
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, tableRow, toAny(tableHeader)...)
	b.WriteString(separator + "\n")
	for i, s := range est.Stocks {
		fmt.Fprintf(&b, tableRow, s.Symbol, s.Sector, s.Industry, FormatPrice(s.LastPrice, s.Currency), s.Rate, FormatGrowth(s.Growth))
		b.WriteString(separator + "\n")
		if i < len(est.Stocks)-1 && s.Rate != est.Stocks[i+1].Rate {
			b.WriteString(separator + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteCSV writes the prediction table as CSV. Growth is the raw rate.
func WriteCSV(w io.Writer, est *models.Estimation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range est.Stocks {
		rec := []string{
			s.Symbol,
			s.Sector,
			s.Industry,
			FormatPrice(s.LastPrice, s.Currency),
			string(s.Rate),
			strconv.FormatFloat(s.Growth, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", s.Symbol, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLossesCSV writes one column of losses per training stage. Shorter
// traces leave trailing cells empty.
func WriteLossesCSV(w io.Writer, est *models.Estimation) error {
	levels := trend.Levels()
	cw := csv.NewWriter(w)
	header := []string{"step"}
	longest := 0
	for _, lv := range levels {
		header = append(header, lv.String())
		if n := len(est.Losses[lv.String()]); n > longest {
			longest = n
		}
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for step := 0; step < longest; step++ {
		rec := []string{strconv.Itoa(step)}
		for _, lv := range levels {
			trace := est.Losses[lv.String()]
			cell := ""
			if step < len(trace) {
				cell = strconv.FormatFloat(trace[step], 'g', -1, 64)
			}
			rec = append(rec, cell)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write step %d: %w", step, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with a Predictions sheet and one sheet per
// aggregate level holding the fitted trend of every entity.
func WriteXLSX(w io.Writer, est *models.Estimation) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Predictions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	header := append(append([]string{"RANK"}, tableHeader...), "SCORE", "PREDICTED PRICE", "PREDICTED STD")
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return err
	}
	for i, s := range est.Stocks {
		row := []interface{}{
			s.Rank, s.Symbol, s.Sector, s.Industry, FormatPrice(s.LastPrice, s.Currency),
			string(s.Rate), s.Growth, s.Score, s.PredPrice, s.PredStd,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "B", "D", 24); err != nil {
		return err
	}

	for _, lv := range []trend.Level{trend.Market, trend.Sector, trend.Industry} {
		if err := writeLevelSheet(f, lv.String(), est); err != nil {
			return fmt.Errorf("%s sheet: %w", lv, err)
		}
	}

	return f.Write(w)
}

func writeLevelSheet(f *excelize.File, level string, est *models.Estimation) error {
	if _, err := f.NewSheet(level); err != nil {
		return err
	}
	header := []interface{}{"DATE"}
	for _, le := range est.Levels[level] {
		header = append(header, le.Name)
	}
	if err := f.SetSheetRow(level, "A1", &header); err != nil {
		return err
	}
	for j, d := range est.Dates {
		row := []interface{}{d.Format("2006-01-02")}
		for _, le := range est.Levels[level] {
			if j < len(le.Trend.Mean) {
				row = append(row, le.Trend.Mean[j])
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, j+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(level, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile creates path and writes to it with write.
func WriteFile(path string, est *models.Estimation, write func(io.Writer, *models.Estimation) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, est); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func toAny(xs []string) []interface{} {
	out := make([]interface{}, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
