package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"cryptofolio/src/models"
	"cryptofolio/src/repositories"
)

// ReportService turns a wallet's balance history into tabular exports: one
// value column per held token, a TOTAL column, and a percentage-of-portfolio
// sheet derived from it.
type ReportService struct {
	historyRepo repositories.BalanceHistoryRepository
	tokenRepo   repositories.TokenRepository
}

func NewReportService(historyRepo repositories.BalanceHistoryRepository, tokenRepo repositories.TokenRepository) *ReportService {
	return &ReportService{historyRepo: historyRepo, tokenRepo: tokenRepo}
}

// WalletValueDataframe builds a date-indexed frame of USD value per token for
// the wallet. Each snapshot contributes DecimalAmount * CurrentPriceUSD;
// snapshots without a price count as zero. When a day has several snapshots
// for the same token the latest one wins.
func (rs *ReportService) WalletValueDataframe(ctx context.Context, walletID int64, from, to time.Time) (*dataframe.DataFrame, error) {
	history, err := rs.historyRepo.ListByWallet(ctx, walletID, from, to)
	if err != nil {
		return nil, err
	}

	symbols, err := rs.tokenSymbols(ctx)
	if err != nil {
		return nil, err
	}

	dates := datesBetween(from, to)
	dateStrs := make([]string, len(dates))
	for i, date := range dates {
		dateStrs[i] = date.Format("2006-01-02")
	}

	df := dataframe.New(
		series.New(dateStrs, series.String, "Date"),
	)

	// value[column][dateIndex]; later snapshots on a day overwrite earlier
	// ones because history is returned in snapshot_date order.
	valuesByColumn := make(map[string][]float64)
	totals := make([]float64, len(dates))

	for i := range history {
		record := &history[i]
		col := rs.columnName(record, symbols)

		dateIndex := -1
		for j, date := range dates {
			if sameDate(date, record.SnapshotDate) {
				dateIndex = j
				break
			}
		}
		if dateIndex < 0 {
			continue
		}

		if _, ok := valuesByColumn[col]; !ok {
			valuesByColumn[col] = make([]float64, len(dates))
		}

		value := 0.0
		if record.CurrentPriceUSD != nil {
			value, _ = record.DecimalAmount.Mul(*record.CurrentPriceUSD).Round(2).Float64()
		}

		totals[dateIndex] += value - valuesByColumn[col][dateIndex]
		valuesByColumn[col][dateIndex] = value
	}

	columns := make([]string, 0, len(valuesByColumn))
	for col := range valuesByColumn {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	for _, col := range columns {
		formatted := make([]string, len(dates))
		for i, v := range valuesByColumn[col] {
			formatted[i] = fmt.Sprintf("%.2f", v)
		}
		newSeries := series.New(formatted, series.String, col)
		df = df.Mutate(newSeries)
	}

	totalStrs := make([]string, len(dates))
	for i, v := range totals {
		totalStrs[i] = fmt.Sprintf("%.2f", v)
	}
	df = df.Mutate(series.New(totalStrs, series.String, "TOTAL"))

	return &df, nil
}

// PercentageOfTotal divides every value column by TOTAL, yielding portfolio
// allocation per date.
func (rs *ReportService) PercentageOfTotal(df *dataframe.DataFrame) *dataframe.DataFrame {
	if df == nil || df.Nrow() == 0 || df.Ncol() == 0 {
		return df
	}

	hasTotal := false
	for _, name := range df.Names() {
		if name == "TOTAL" {
			hasTotal = true
			break
		}
	}
	if !hasTotal {
		return df
	}

	totalCol := df.Col("TOTAL")
	newDf := df.Copy()

	for _, colName := range df.Names() {
		if colName == "Date" || colName == "TOTAL" {
			continue
		}

		col := df.Col(colName)
		newValues := make([]string, col.Len())
		for i := 0; i < col.Len(); i++ {
			total := totalCol.Elem(i).Float()
			if total == 0 {
				newValues[i] = "0.0"
				continue
			}
			newValues[i] = fmt.Sprintf("%.2f", (col.Elem(i).Float()/total)*100)
		}

		newDf = newDf.Mutate(series.New(newValues, series.String, colName))
	}

	return &newDf
}

// GenerateXLSXReport renders the value and allocation frames into a styled
// workbook, one sheet each.
func (rs *ReportService) GenerateXLSXReport(ctx context.Context, walletID int64, from, to time.Time) (*excelize.File, error) {
	valueDf, err := rs.WalletValueDataframe(ctx, walletID, from, to)
	if err != nil {
		return nil, err
	}
	percentageDf := rs.PercentageOfTotal(valueDf)

	file, err := rs.writeSheet(nil, valueDf, "Holdings", false)
	if err != nil {
		return nil, err
	}

	file, err = rs.writeSheet(file, percentageDf, "Allocation", true)
	if err != nil {
		return nil, err
	}

	if err := rs.applyStylesToAllSheets(file); err != nil {
		return nil, err
	}
	return file, nil
}

func (rs *ReportService) writeSheet(f *excelize.File, df *dataframe.DataFrame, sheetName string, percentageData bool) (*excelize.File, error) {
	if df == nil || df.Nrow() == 0 || df.Ncol() == 0 {
		return f, nil
	}

	if f == nil {
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			return nil, err
		}
	} else {
		index, err := f.NewSheet(sheetName)
		if err != nil {
			return nil, err
		}
		defer f.SetActiveSheet(index)
	}

	numFmt := 8
	if percentageData {
		numFmt = 10
	}
	cellStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmt})
	if err != nil {
		return nil, err
	}

	for colIndex, name := range df.Names() {
		cell := fmt.Sprintf("%s1", toAlphaString(colIndex+1))
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return nil, err
		}
	}

	for rowIndex, row := range df.Records()[1:] {
		for colIndex, cellValue := range row {
			cell := fmt.Sprintf("%s%d", toAlphaString(colIndex+1), rowIndex+2)
			if numValue, err := strconv.ParseFloat(cellValue, 64); err == nil && colIndex > 0 {
				if err := f.SetCellValue(sheetName, cell, numValue); err != nil {
					return nil, err
				}
				if err := f.SetCellStyle(sheetName, cell, cell, cellStyle); err != nil {
					return nil, err
				}
			} else if err := f.SetCellValue(sheetName, cell, cellValue); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

func (rs *ReportService) applyStylesToAllSheets(f *excelize.File) error {
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}

		lastRow := len(rows)
		lastCol := len(rows[0])

		headerStyle, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{
				Type:    "pattern",
				Color:   []string{"#E6E6E6"},
				Pattern: 1,
			},
			Border: []excelize.Border{
				{Type: "left", Color: "000000", Style: 1},
				{Type: "top", Color: "000000", Style: 1},
				{Type: "bottom", Color: "000000", Style: 1},
				{Type: "right", Color: "000000", Style: 1},
			},
			Alignment: &excelize.Alignment{
				Horizontal: "center",
				Vertical:   "center",
			},
		})
		if err != nil {
			return err
		}

		err = f.SetCellStyle(sheetName, "A1", fmt.Sprintf("%s1", toAlphaString(lastCol)), headerStyle)
		if err != nil {
			return err
		}

		dataStyle, err := f.NewStyle(&excelize.Style{
			Border: []excelize.Border{
				{Type: "left", Color: "000000", Style: 1},
				{Type: "top", Color: "000000", Style: 1},
				{Type: "bottom", Color: "000000", Style: 1},
				{Type: "right", Color: "000000", Style: 1},
			},
			Alignment: &excelize.Alignment{
				Horizontal: "center",
				Vertical:   "center",
			},
		})
		if err != nil {
			return err
		}

		if lastRow > 1 {
			err = f.SetCellStyle(sheetName, "A2", fmt.Sprintf("%s%d", toAlphaString(lastCol), lastRow), dataStyle)
			if err != nil {
				return err
			}
		}

		for i := 1; i <= lastCol; i++ {
			colName := toAlphaString(i)
			if err := f.SetColWidth(sheetName, colName, colName, 15); err != nil {
				return err
			}
		}
	}

	return nil
}

func (rs *ReportService) columnName(record *models.BalanceHistory, symbols map[int64]string) string {
	symbol, ok := symbols[record.TokenID]
	if !ok {
		symbol = fmt.Sprintf("token_%d", record.TokenID)
	}
	if record.ChainID != nil {
		return fmt.Sprintf("%s-%d", symbol, *record.ChainID)
	}
	return symbol
}

func (rs *ReportService) tokenSymbols(ctx context.Context) (map[int64]string, error) {
	tokens, err := rs.tokenRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make(map[int64]string, len(tokens))
	for i := range tokens {
		symbols[tokens[i].ID] = tokens[i].Symbol
	}
	return symbols, nil
}

func datesBetween(from, to time.Time) []time.Time {
	var dates []time.Time
	for date := from.Truncate(24 * time.Hour); !date.After(to); date = date.AddDate(0, 0, 1) {
		dates = append(dates, date)
	}
	return dates
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func toAlphaString(column int) string {
	result := ""
	for column > 0 {
		column--
		result = string(rune('A'+column%26)) + result
		column /= 26
	}
	return result
}
