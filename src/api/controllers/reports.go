package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"cryptofolio/src/models"
	"cryptofolio/src/utils"
)

func (c *Controller) walletIDByUUID(ctx context.Context, walletUUID uuid.UUID) (int64, error) {
	var wallet models.Wallet
	err := c.DB.WithContext(ctx).Where("uuid = ? AND deleted = false", walletUUID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, utils.NotFound("wallet not found")
		}
		return 0, err
	}
	return wallet.ID, nil
}

// GetWalletXLSXReport builds the holdings workbook for the wallet with a
// chart sheet appended per data sheet.
func (c *Controller) GetWalletXLSXReport(ctx context.Context, walletUUID uuid.UUID, from, to time.Time) (*excelize.File, error) {
	walletID, err := c.walletIDByUUID(ctx, walletUUID)
	if err != nil {
		return nil, err
	}

	file, err := c.Reports.GenerateXLSXReport(ctx, walletID, from, to)
	if err != nil {
		return nil, err
	}

	if err := addStackedColumnChart(file, "Holdings"); err != nil {
		// A workbook without the chart sheet is still useful.
		utils.LoggerFromContext(ctx).WithError(err).Warn("chart sheet generation failed")
	}

	return file, nil
}

// addStackedColumnChart adds a chart sheet plotting every value column of the
// data sheet over its date axis.
func addStackedColumnChart(file *excelize.File, dataSheet string) error {
	rows, err := file.GetRows(dataSheet)
	if err != nil {
		return err
	}
	if len(rows) < 2 || len(rows[0]) < 2 {
		return errors.New("not enough data for a chart")
	}

	startRow := 2
	endRow := len(rows)

	categories := formatChartRange(dataSheet, "A", startRow, endRow)
	series := []excelize.ChartSeries{}
	for col := 1; col < len(rows[0])-1; col++ {
		colName, _ := excelize.ColumnNumberToName(col + 1)
		series = append(series, excelize.ChartSeries{
			Name:       formatChartRange(dataSheet, colName, 1, 1),
			Categories: categories,
			Values:     formatChartRange(dataSheet, colName, startRow, endRow),
		})
	}

	chart := excelize.Chart{
		Type:   excelize.ColStacked,
		Series: series,
		Title: []excelize.RichTextRun{
			{Text: dataSheet, Font: &excelize.Font{Bold: true, Size: 20}},
		},
		Legend: excelize.ChartLegend{
			Position:      "right",
			ShowLegendKey: true,
		},
		XAxis: excelize.ChartAxis{MajorGridLines: true},
		YAxis: excelize.ChartAxis{MajorGridLines: true},
		Dimension: excelize.ChartDimension{
			Width:  1200,
			Height: 700,
		},
	}

	chartSheet := dataSheet + " - Chart"
	index, err := file.NewSheet(chartSheet)
	if err != nil {
		return err
	}
	if err := file.AddChart(chartSheet, "A1", &chart); err != nil {
		return err
	}
	file.SetActiveSheet(index)
	return nil
}

func formatChartRange(sheet, col string, startRow, endRow int) string {
	return fmt.Sprintf("%s!$%s$%d:$%s$%d", sheet, col, startRow, col, endRow)
}
