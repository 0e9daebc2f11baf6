//go:build wireinject
// +build wireinject

package internal

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/luoxq/beacon/internal/config"
	"github.com/luoxq/beacon/internal/handler"
	"github.com/luoxq/beacon/internal/repo"
	"github.com/luoxq/beacon/internal/service"
	"github.com/luoxq/beacon/internal/telegram"
	"github.com/luoxq/beacon/pkg/market"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	telegramHTTPTimeout = 10 * time.Second
	btcturkHTTPTimeout  = 15 * time.Second
)

var (
	handlerSet = wire.NewSet(
		handler.NewAnalysisHandler,
	)

	analysisSet = wire.NewSet(
		provideVenues,
		provideMarketService,
		provideOpenAIClient,
		provideSentimentService,
		service.NewSystemClock,
		service.NewNewsService,
		service.NewIndicatorService,
		service.NewPatternService,
		service.NewAnalyzerService,
		service.NewTrackerService,
		service.NewScanLoop,
		repo.NewPredictionRepo,
		repo.NewAnalysisRecordRepo,
		wire.Bind(new(service.MarketSource), new(*service.MarketService)),
		wire.Bind(new(service.SentimentSource), new(*service.SentimentService)),
	)
)

// InitializeApp 初始化应用
func InitializeApp(logger *zap.Logger, db *gorm.DB, conf *config.Config) (*AppComponents, error) {
	wire.Build(
		handlerSet,
		analysisSet,
		provideTelegram,
		provideNotifier,
		wire.Struct(new(AppComponents), "*"),
	)
	return nil, nil
}

// provideVenues provides the venue list in fallback priority order
func provideVenues(conf *config.Config, logger *zap.Logger) []market.Venue {
	var venues []market.Venue

	if conf.BtcTurk.Enabled {
		httpClient := &http.Client{Timeout: btcturkHTTPTimeout}
		venues = append(venues, market.NewBtcTurkVenue(conf.BtcTurk.BaseURL, conf.BtcTurk.GraphURL, httpClient))
		logger.Info("BtcTurk venue enabled as primary source")
	}

	venues = append(venues, provideBinanceVenue(conf, logger))
	return venues
}

// provideBinanceVenue provides the Binance fallback venue
func provideBinanceVenue(conf *config.Config, logger *zap.Logger) *market.BinanceVenue {
	venue := market.NewBinanceVenue(
		conf.Binance.APIKey,
		conf.Binance.Secret,
		conf.Binance.ProxyURL,
		conf.Binance.Testnet,
	)

	logger.Info("Binance venue initialized",
		zap.Bool("testnet", conf.Binance.Testnet),
		zap.Bool("has_credentials", conf.Binance.APIKey != "" && conf.Binance.Secret != ""),
	)
	return venue
}

// provideMarketService provides the cached market data service
func provideMarketService(venues []market.Venue, conf *config.Config, logger *zap.Logger) *service.MarketService {
	frameTTL := time.Duration(conf.Analyzer.CacheTTLOhlcvSeconds) * time.Second
	return service.NewMarketService(venues, frameTTL, conf.Analyzer.RequiredBars, logger)
}

// provideSentimentService provides the market sentiment aggregator
func provideSentimentService(conf *config.Config, news *service.NewsService, clock service.Clock, logger *zap.Logger) *service.SentimentService {
	ttl := time.Duration(conf.Analyzer.CacheTTLMarketStateSeconds) * time.Second
	binance := provideBinanceVenue(conf, logger)
	return service.NewSentimentService(binance, news, clock, ttl, logger)
}

// provideOpenAIClient provides OpenAI client for news tone classification
func provideOpenAIClient(conf *config.Config, logger *zap.Logger) *openai.Client {
	if !conf.News.Enabled || conf.News.LLM.APIKey == "" {
		return nil
	}

	var options = []option.RequestOption{
		option.WithBaseURL(conf.News.LLM.BaseURL),
		option.WithAPIKey(conf.News.LLM.APIKey),
	}
	if conf.News.LLM.ProxyURL != "" {
		u, err := url.Parse(conf.News.LLM.ProxyURL)
		if err != nil {
			logger.Fatal("failed to parse proxy URL", zap.Error(err))
		}
		httpClient := &http.Client{
			Timeout: time.Minute,
			Transport: &http.Transport{
				Proxy: http.ProxyURL(u),
			},
		}
		options = append(options, option.WithHTTPClient(httpClient))
	}

	client := openai.NewClient(options...)

	logger.Info("OpenAI client initialized",
		zap.String("model", conf.News.LLM.Model),
	)
	return &client
}

// provideTelegram provides telegram instance
func provideTelegram(
	logger *zap.Logger,
	conf *config.Config,
	analyzerService *service.AnalyzerService,
	trackerService *service.TrackerService,
) *telegram.Telegram {
	if !conf.Telegram.Enabled {
		return nil
	}

	httpClient := &http.Client{Timeout: telegramHTTPTimeout}

	tg, err := telegram.NewTelegram(logger, telegram.Settings{
		Token:  conf.Telegram.Token,
		Client: httpClient,
	}, conf, analyzerService, trackerService)
	if err != nil {
		logger.Error("failed to init telegram", zap.Error(err))
		return nil
	}

	return tg
}

// provideNotifier adapts the optional telegram bot into an alert channel
func provideNotifier(tg *telegram.Telegram) service.Notifier {
	if tg == nil {
		return nil
	}
	return tg
}
