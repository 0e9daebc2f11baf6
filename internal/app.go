package internal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-orz/orz"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/luoxq/beacon/internal/config"
	"github.com/luoxq/beacon/internal/handler"
	"github.com/luoxq/beacon/internal/models"
	"github.com/luoxq/beacon/internal/service"
	"github.com/luoxq/beacon/internal/telegram"
	"github.com/luoxq/beacon/pkg/nostd"
	"go.uber.org/zap"
)

func Run(configPath string) error {
	app := NewBeaconApp()

	framework, err := orz.NewFramework(
		orz.WithConfig(configPath),
		orz.WithLoggerFromConfig(),
		orz.WithDatabase(),
		orz.WithHTTP(),
		orz.WithApplication(app),
	)
	if err != nil {
		return err
	}

	return framework.Run()
}

func NewBeaconApp() orz.Application {
	return &BeaconApp{}
}

var _ orz.Application = (*BeaconApp)(nil)

type AppComponents struct {
	AnalysisHandler *handler.AnalysisHandler

	// Signal engine services
	ScanLoop         *service.ScanLoop
	AnalyzerService  *service.AnalyzerService
	TrackerService   *service.TrackerService
	MarketService    *service.MarketService
	SentimentService *service.SentimentService

	Telegram *telegram.Telegram
}

type BeaconApp struct {
	components *AppComponents
	conf       *config.Config
}

// GetComponents 获取应用组件
func (r *BeaconApp) GetComponents() *AppComponents {
	return r.components
}

func (r *BeaconApp) Configure(app *orz.App) error {
	logger := app.Logger()
	e := app.GetEcho()
	db := app.GetDatabase()

	var conf config.Config
	err := app.GetConfig().App.Unmarshal(&conf)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %v", err)
	}
	if err := conf.Analyzer.Normalize(); err != nil {
		return fmt.Errorf("invalid analyzer config: %v", err)
	}

	components, err := InitializeApp(logger, db, &conf)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %v", err)
	}
	r.components = components
	r.conf = &conf

	if err := db.AutoMigrate(
		// Signal engine models
		models.Prediction{}, models.AnalysisRecord{},
	); err != nil {
		logger.Fatal("database auto migrate failed", zap.Error(err))
	}

	if err := r.Init(logger); err != nil {
		logger.Fatal("app init failed", zap.Error(err))
	}

	e.HidePort = true
	e.HideBanner = true

	e.Use(middleware.Gzip())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		Skipper:      middleware.DefaultSkipper,
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			sugar := logger.Sugar()
			sugar.Error(fmt.Sprintf("[PANIC RECOVER] %v %s\n", err, stack))
			return err
		},
	}))
	e.Use(WithErrorHandler(logger))
	customValidator := nostd.CustomValidator{Validator: validator.New()}
	if err := customValidator.TransInit(); err != nil {
		logger.Sugar().Fatal("failed to init custom validator", zap.Error(err))
	}
	e.Validator = &customValidator

	api := e.Group("/api")
	{
		if r.components.AnalysisHandler != nil {
			r.components.AnalysisHandler.RegisterRoutes(api)
		}
	}

	return nil
}

func (r *BeaconApp) Init(logger *zap.Logger) error {
	logger.Info("=================================================")
	logger.Info("Beacon Signal Engine Starting...")
	logger.Info("=================================================")

	components := r.GetComponents()
	if components == nil {
		return fmt.Errorf("components not initialized")
	}

	if components.ScanLoop == nil {
		return fmt.Errorf("scan loop not available, please check market data configuration")
	}

	if components.Telegram != nil {
		components.Telegram.Start()
		logger.Info("telegram bot started")
	}

	logger.Info("Scan loop initialized, starting...")

	go func() {
		if err := components.ScanLoop.Start(context.Background()); err != nil {
			logger.Error("scan loop error", zap.Error(err))
		}
	}()
	return nil
}
