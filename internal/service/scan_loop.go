package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/luoxq/beacon/internal/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Notifier 告警通道，扫描发现可操作信号时推送
type Notifier interface {
	Notify(chatId, msg string) error
}

// ScanLoop 周期扫描调度器
type ScanLoop struct {
	config          config.AnalyzerConf
	telegramConf    config.TelegramConf
	analyzerService *AnalyzerService
	trackerService  *TrackerService
	notifier        Notifier
	logger          *zap.Logger

	startTime time.Time
	iteration int
	isRunning bool
	stopChan  chan struct{}
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScanLoop 创建扫描循环
func NewScanLoop(
	conf *config.Config,
	analyzerService *AnalyzerService,
	trackerService *TrackerService,
	notifier Notifier,
	logger *zap.Logger,
) *ScanLoop {
	return &ScanLoop{
		config:          conf.Analyzer,
		telegramConf:    conf.Telegram,
		analyzerService: analyzerService,
		trackerService:  trackerService,
		notifier:        notifier,
		logger:          logger,
		startTime:       time.Now(),
		stopChan:        make(chan struct{}),
	}
}

// Start 启动扫描循环，阻塞直到Stop或context取消
func (t *ScanLoop) Start(ctx context.Context) error {
	if t.isRunning {
		return fmt.Errorf("scan loop is already running")
	}

	t.isRunning = true
	t.startTime = time.Now()
	t.ctx, t.cancel = context.WithCancel(ctx)

	// 生成 cron 表达式：每 N 分钟的整点执行
	// 例如 interval=15: "*/15 * * * *" 表示每小时的 0, 15, 30, 45 分执行
	cronExpr := fmt.Sprintf("*/%d * * * *", t.config.ScanIntervalMinutes)

	t.logger.Info("scan loop started",
		zap.Strings("symbols", t.config.Symbols),
		zap.Int("interval_minutes", t.config.ScanIntervalMinutes),
		zap.String("cron_expression", cronExpr))

	t.cron = cron.New()

	_, err := t.cron.AddFunc(cronExpr, func() {
		if err := t.ExecuteCycle(context.Background()); err != nil {
			t.logger.Error("cycle execution failed", zap.Error(err))
		}
	})
	if err != nil {
		t.isRunning = false
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	t.cron.Start()

	// 立即执行第一次
	go func() {
		if err := t.ExecuteCycle(context.Background()); err != nil {
			t.logger.Error("first cycle execution failed", zap.Error(err))
		}
	}()

	select {
	case <-t.stopChan:
		t.logger.Info("scan loop stopped by user")
		return nil
	case <-ctx.Done():
		t.logger.Info("scan loop stopped by context")
		return ctx.Err()
	}
}

// Stop 停止扫描循环
func (t *ScanLoop) Stop() {
	if !t.isRunning {
		return
	}

	t.logger.Info("stopping scan loop...")

	if t.cron != nil {
		ctx := t.cron.Stop()
		<-ctx.Done() // 等待所有任务完成
		t.logger.Info("cron scheduler stopped")
	}

	if t.cancel != nil {
		t.cancel()
	}

	t.isRunning = false
	close(t.stopChan)
	t.logger.Info("scan loop stopped")
}

// IsRunning 扫描循环是否在运行
func (t *ScanLoop) IsRunning() bool {
	return t.isRunning
}

// Uptime 运行时长
func (t *ScanLoop) Uptime() time.Duration {
	return time.Since(t.startTime)
}

// Iteration 已执行的扫描轮次
func (t *ScanLoop) Iteration() int {
	return t.iteration
}

// ExecuteCycle 执行一个完整的扫描周期（4步流程）
func (t *ScanLoop) ExecuteCycle(ctx context.Context) error {
	t.iteration++
	cycleStart := time.Now()

	t.logger.Info("========== SCAN CYCLE START ==========",
		zap.Int("iteration", t.iteration),
		zap.Time("start_time", cycleStart))

	// ========== Step 1: 扫描全部币种 ==========
	t.logger.Info("[STEP 1/4] Scanning symbols...")
	results, err := t.analyzerService.ScanAll(ctx)
	if err != nil {
		return fmt.Errorf("step 1 failed - scan symbols: %w", err)
	}
	t.logger.Info("[STEP 1/4] Scan completed",
		zap.Int("symbols_count", len(results)))

	// ========== Step 2: 推送可操作信号 ==========
	t.logger.Info("[STEP 2/4] Dispatching alerts...")
	alerted := t.dispatchAlerts(results)
	t.logger.Info("[STEP 2/4] Alerts dispatched",
		zap.Int("alert_count", alerted))

	// ========== Step 3: 验证到期预测 ==========
	t.logger.Info("[STEP 3/4] Verifying due predictions...")
	verified, err := t.trackerService.VerifyDue(ctx)
	if err != nil {
		t.logger.Error("failed to verify predictions", zap.Error(err))
	}
	t.logger.Info("[STEP 3/4] Predictions verified",
		zap.Int("verified_count", verified))

	// ========== Step 4: 清理过期历史 ==========
	t.logger.Info("[STEP 4/4] Cleaning up history...")
	removed, err := t.trackerService.Cleanup(ctx, t.config.RetentionDays)
	if err != nil {
		t.logger.Error("failed to cleanup history", zap.Error(err))
	}
	t.logger.Info("[STEP 4/4] History cleaned",
		zap.Int64("removed_rows", removed))

	t.logger.Info("========== SCAN CYCLE COMPLETE ==========",
		zap.Int("iteration", t.iteration),
		zap.Duration("duration", time.Since(cycleStart)))

	return nil
}

// dispatchAlerts 推送可操作信号，返回推送数量
func (t *ScanLoop) dispatchAlerts(results []*Analysis) int {
	if t.notifier == nil || t.telegramConf.ChatID == "" {
		return 0
	}

	alerted := 0
	for _, analysis := range results {
		if !isActionable(analysis.Action) || analysis.Confidence == ConfidenceLow {
			continue
		}
		msg := FormatSignalMessage(analysis)
		if err := t.notifier.Notify(t.telegramConf.ChatID, msg); err != nil {
			t.logger.Error("failed to send alert",
				zap.String("symbol", analysis.Symbol),
				zap.Error(err))
			continue
		}
		alerted++
	}
	return alerted
}

func isActionable(action string) bool {
	switch action {
	case ActionStrongBuy, ActionBuy, ActionSell, ActionAvoid:
		return true
	}
	return false
}

// FormatSignalMessage 格式化信号推送消息
func FormatSignalMessage(analysis *Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* %s\n", analysis.Symbol, actionEmoji(analysis.Action))
	fmt.Fprintf(&b, "Score: *%d* / 100\n", analysis.FinalScore)
	fmt.Fprintf(&b, "Action: *%s*\n", analysis.Action)
	fmt.Fprintf(&b, "Confidence: %s\n", analysis.Confidence)
	fmt.Fprintf(&b, "Alignment: %s\n", analysis.Alignment)
	if analysis.Price > 0 {
		fmt.Fprintf(&b, "Price: %.6g USD\n", analysis.Price)
	}
	if analysis.PumpRisk > 0 {
		fmt.Fprintf(&b, "Pump risk: %d\n", analysis.PumpRisk)
	}
	if len(analysis.Signals) > 0 {
		b.WriteString("\n")
		limit := len(analysis.Signals)
		if limit > 5 {
			limit = 5
		}
		for _, signal := range analysis.Signals[:limit] {
			fmt.Fprintf(&b, "- %s\n", signal)
		}
	}
	return b.String()
}

func actionEmoji(action string) string {
	switch action {
	case ActionStrongBuy:
		return "🚀"
	case ActionBuy:
		return "📈"
	case ActionWatch:
		return "👀"
	case ActionAvoid:
		return "⚠️"
	case ActionSell:
		return "📉"
	default:
		return "➖"
	}
}
