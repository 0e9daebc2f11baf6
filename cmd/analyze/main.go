package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/luoxq/beacon/internal/config"
	"github.com/luoxq/beacon/internal/service"
	"github.com/luoxq/beacon/pkg/market"
	"github.com/luoxq/beacon/pkg/nostd"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// 不依赖数据库的一次性分析工具，结果直接输出JSON
var analyzeCmd = &cobra.Command{
	Use:   "analyze <symbol>",
	Short: "对单个币种执行一次综合分析",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := nostd.NormalizeSymbol(args[0])
		if symbol == "" {
			return fmt.Errorf("invalid symbol: %s", args[0])
		}

		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()

		conf := &config.Config{}
		if err := conf.Analyzer.Normalize(); err != nil {
			return err
		}

		venues := []market.Venue{
			market.NewBtcTurkVenue("", "", nil),
			market.NewBinanceVenue("", "", "", false),
		}
		marketService := service.NewMarketService(venues, time.Minute, conf.Analyzer.RequiredBars, logger)

		clock := service.NewSystemClock()
		sentimentService := service.NewSentimentService(
			market.NewBinanceVenue("", "", "", false), nil, clock, 5*time.Minute, logger)

		analyzer := service.NewAnalyzerService(
			conf,
			marketService,
			service.NewIndicatorService(),
			service.NewPatternService(),
			sentimentService,
			nil, // 不落库
			clock,
			logger,
		)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		analysis, err := analyzer.Analyze(ctx, symbol)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

func main() {
	if err := analyzeCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
