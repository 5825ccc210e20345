package controllers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"

	"cryptofolio/src/models"
)

// GetWalletValueChart renders the wallet's USD value over time as an HTML
// line chart, one series per token plus the portfolio total.
func (c *Controller) GetWalletValueChart(ctx context.Context, walletUUID uuid.UUID, from, to time.Time) (*charts.Line, error) {
	history, err := c.Ledger.WalletHistory(ctx, walletUUID, from, to)
	if err != nil {
		return nil, err
	}

	var tokens []models.Token
	if err := c.DB.WithContext(ctx).Find(&tokens).Error; err != nil {
		return nil, err
	}
	symbols := make(map[int64]string, len(tokens))
	for i := range tokens {
		symbols[tokens[i].ID] = tokens[i].Symbol
	}

	// date -> series -> value
	valuesByDate := make(map[string]map[string]float64)
	seriesNames := make(map[string]bool)

	for i := range history {
		record := &history[i]
		if record.CurrentPriceUSD == nil {
			continue
		}

		date := record.SnapshotDate.Format("2006-01-02")
		name := symbols[record.TokenID]
		if name == "" {
			name = fmt.Sprintf("token_%d", record.TokenID)
		}

		value, _ := record.DecimalAmount.Mul(*record.CurrentPriceUSD).Round(2).Float64()
		if valuesByDate[date] == nil {
			valuesByDate[date] = make(map[string]float64)
		}
		valuesByDate[date][name] = value
		seriesNames[name] = true
	}

	dates := make([]string, 0, len(valuesByDate))
	for date := range valuesByDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithAnimation(false),
		charts.WithTitleOpts(opts.Title{Title: "Wallet value (USD)"}),
		charts.WithYAxisOpts(opts.YAxis{
			SplitLine: &opts.SplitLine{Show: opts.Bool(true)},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(dates)

	names := make([]string, 0, len(seriesNames))
	for name := range seriesNames {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		data := make([]opts.LineData, 0, len(dates))
		for _, date := range dates {
			data = append(data, opts.LineData{Value: valuesByDate[date][name]})
		}
		line.AddSeries(name, data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		)
	}

	totals := make([]opts.LineData, 0, len(dates))
	for _, date := range dates {
		sum := 0.0
		for _, v := range valuesByDate[date] {
			sum += v
		}
		totals = append(totals, opts.LineData{Value: sum})
	}
	line.AddSeries("TOTAL", totals,
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.2)}),
	)

	return line, nil
}
