package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"max.com/riskcalc/pkg/config"
	"max.com/riskcalc/pkg/logger"
	"max.com/riskcalc/pkg/marketdata"
	"max.com/riskcalc/pkg/risk"
	"max.com/riskcalc/pkg/risk/options"
)

// 参考参数
var (
	demoTerms = options.Terms{
		TradeDate:  "2022-11-23",
		ExpiryDate: "2023-05-10",
		Spot:       19,
		Strike:     17,
		Rate:       0.005,
		Volatility: 0.3,
	}
	demoPosition1 = 153084.81
	demoPosition2 = 95891.51
)

// runOnce 期权定价 + 数据文件上的 VaR，结果写到 w
func runOnce(cfg *config.Config, w io.Writer) error {
	log := logger.Component("run")

	opt, err := options.NewFromTerms(demoTerms)
	if err != nil {
		return fmt.Errorf("option: %w", err)
	}
	fmt.Fprintln(w, opt)
	fmt.Fprintf(w, "Call: %.6f  Put: %.6f\n", opt.Call(), opt.Put())

	series, err := loadSeries(cfg)
	if err != nil {
		return err
	}
	log.Info("series loaded", "series", series.String())

	res, err := risk.ComputeVaR(risk.VaRInput{
		Pair:        series.Pair,
		MarketRate1: series.Ccy1,
		MarketRate2: series.Ccy2,
		Position1:   demoPosition1,
		Position2:   demoPosition2,
	})
	if err != nil {
		return fmt.Errorf("var: %w", err)
	}
	fmt.Fprintf(w, "VaR-1Day: %.2f (observations: %d)\n", res.VaR1D, res.Observations)
	return nil
}

// loadSeries 数据文件不存在时退回模拟序列
func loadSeries(cfg *config.Config) (*marketdata.Series, error) {
	if cfg.Risk.DataFile != "" {
		s, err := marketdata.LoadFile(cfg.Risk.DataFile)
		if err == nil {
			if s.Pair == "" {
				s.Pair = cfg.Risk.DefaultPair
			}
			return s, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", cfg.Risk.DataFile, err)
		}
		logger.Component("run").Warn("data file not found, using synthetic series", "path", cfg.Risk.DataFile)
	}
	return marketdata.Synthetic(marketdata.DefaultSyntheticConfig(cfg.Risk.DefaultPair)), nil
}
