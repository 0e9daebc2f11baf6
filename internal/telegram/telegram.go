package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/luoxq/beacon/internal/config"
	"github.com/luoxq/beacon/internal/service"
	"github.com/luoxq/beacon/pkg/nostd"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"
)

const commandTimeout = 2 * time.Minute

type Settings struct {
	Token  string
	Client *http.Client
}

type Telegram struct {
	logger   *zap.Logger
	settings Settings
	client   *tele.Bot

	conf            config.AnalyzerConf
	analyzerService *service.AnalyzerService
	trackerService  *service.TrackerService
}

type Option func(telegram *Telegram)

func NewTelegram(
	logger *zap.Logger,
	settings Settings,
	conf *config.Config,
	analyzerService *service.AnalyzerService,
	trackerService *service.TrackerService,
	options ...Option,
) (*Telegram, error) {

	poller := &tele.LongPoller{Timeout: 10 * time.Second}

	userMiddleware := tele.NewMiddlewarePoller(poller, func(u *tele.Update) bool {

		return true
	})

	client, err := tele.NewBot(tele.Settings{
		ParseMode: tele.ModeMarkdown,
		Token:     settings.Token,
		Poller:    userMiddleware,
		Client:    settings.Client,
	})
	if err != nil {
		return nil, err
	}

	client.Use(middleware.AutoRespond())

	err = client.SetCommands([]tele.Command{
		{Text: "/start", Description: "启动机器人，显示主菜单"},
		{Text: "/help", Description: "获取帮助信息"},
		{Text: "/status", Description: "查看系统状态"},
		{Text: "/analyze", Description: "分析指定币种，例如 /analyze BTC"},
		{Text: "/stats", Description: "查看预测准确率统计"},
	})
	if err != nil {
		return nil, err
	}

	bot := &Telegram{
		logger:          logger,
		settings:        settings,
		client:          client,
		conf:            conf.Analyzer,
		analyzerService: analyzerService,
		trackerService:  trackerService,
	}

	for _, option := range options {
		option(bot)
	}

	bot.registerHandlers()

	return bot, nil
}

func (r *Telegram) registerHandlers() {
	r.client.Handle("/start", r.handleStart)
	r.client.Handle("/help", r.handleHelp)
	r.client.Handle("/status", r.handleStatus)
	r.client.Handle("/analyze", r.handleAnalyze)
	r.client.Handle("/stats", r.handleStats)
}

func (r *Telegram) Start() {
	go r.client.Start()
}

func (r *Telegram) Notify(chatId, msg string) error {
	_chatId := cast.ToInt(chatId)
	_, err := r.client.Send(tele.ChatID(_chatId), msg, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	return err
}

func (r *Telegram) handleStart(c tele.Context) error {
	return c.Send("Beacon 行情信号机器人已就绪。\n使用 /analyze BTC 获取综合分析，/help 查看全部命令。")
}

func (r *Telegram) handleHelp(c tele.Context) error {
	help := strings.Join([]string{
		"/analyze <币种> - 多时间框架综合分析，例如 /analyze BTC",
		"/status - 查看监控币种与待验证预测",
		"/stats - 查看滚动窗口预测准确率",
		"/help - 显示本帮助",
	}, "\n")
	return c.Send(help)
}

func (r *Telegram) handleStatus(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	pending, err := r.trackerService.RecentPredictions(ctx, 5)
	if err != nil {
		r.logger.Error("failed to load predictions", zap.Error(err))
		return c.Send("查询失败，请稍后再试")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Beacon Status*\n")
	fmt.Fprintf(&b, "Symbols: %s\n", strings.Join(r.conf.Symbols, ", "))
	fmt.Fprintf(&b, "Scan interval: %d min\n", r.conf.ScanIntervalMinutes)
	if len(pending) > 0 {
		b.WriteString("\nRecent predictions:\n")
		for i := range pending {
			p := &pending[i]
			fmt.Fprintf(&b, "- %s %s score=%d outcome=%s\n", p.Symbol, p.Action, p.FinalScore, p.Outcome)
		}
	}
	return c.Send(b.String())
}

func (r *Telegram) handleAnalyze(c tele.Context) error {
	symbol := nostd.NormalizeSymbol(c.Message().Payload)
	if symbol == "" {
		return c.Send("用法: /analyze <币种>，例如 /analyze BTC")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	analysis, err := r.analyzerService.Analyze(ctx, symbol)
	if err != nil {
		r.logger.Error("analyze command failed",
			zap.String("symbol", symbol),
			zap.Error(err))
		return c.Send(fmt.Sprintf("分析 %s 失败，请稍后再试", escapeMarkdown(symbol)))
	}

	return c.Send(service.FormatSignalMessage(analysis))
}

func (r *Telegram) handleStats(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	stats, err := r.trackerService.Stats(ctx, r.conf.AccuracyWindowDays)
	if err != nil {
		r.logger.Error("failed to load accuracy stats", zap.Error(err))
		return c.Send("查询失败，请稍后再试")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Accuracy (last %d days)*\n", stats.WindowDays)
	fmt.Fprintf(&b, "Verified: %d (correct %d / wrong %d / partial %d)\n",
		stats.Total, stats.Correct, stats.Wrong, stats.Partial)
	fmt.Fprintf(&b, "Accuracy: %.1f%%\n", stats.Accuracy*100)
	if stats.BuyTotal > 0 {
		fmt.Fprintf(&b, "Buy side: %.1f%% (%d)\n", stats.BuyAccuracy*100, stats.BuyTotal)
	}
	if stats.SellTotal > 0 {
		fmt.Fprintf(&b, "Sell side: %.1f%% (%d)\n", stats.SellAccuracy*100, stats.SellTotal)
	}
	fmt.Fprintf(&b, "Pending: %d", stats.Pending)
	return c.Send(b.String())
}
