package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/luoxq/beacon/internal/config"
	"github.com/openai/openai-go"
	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"
)

const cryptoPanicURL = "https://cryptopanic.com/api/v1/posts/"

const newsTonePrompt = `以下是最近的加密货币市场新闻标题：

{{headlines}}

请用一句不超过15个英文单词的话概括整体市场新闻基调（例如 "news tone: cautious, regulatory pressure dominates headlines"）。
回答必须以 "news tone:" 开头，只输出这一句话。`

// NewsService 可选的新闻标题基调分类服务
// 仅生成描述性信号文本，从不影响评分数值；未配置时整个能力关闭
type NewsService struct {
	logger *zap.Logger

	openAIClient *openai.Client
	model        string
	token        string
	httpClient   *http.Client
}

// NewNewsService 创建新闻情绪服务，配置不完整时返回nil
func NewNewsService(conf *config.Config, openAIClient *openai.Client, logger *zap.Logger) *NewsService {
	if !conf.News.Enabled || conf.News.CryptoPanicToken == "" || openAIClient == nil {
		return nil
	}
	return &NewsService{
		logger:       logger,
		openAIClient: openAIClient,
		model:        conf.News.LLM.Model,
		token:        conf.News.CryptoPanicToken,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

// HeadlineTone 获取最新新闻标题并分类整体基调，返回单条信号文本
func (s *NewsService) HeadlineTone(ctx context.Context) (string, error) {
	headlines, err := s.fetchHeadlines(ctx)
	if err != nil {
		return "", err
	}
	if len(headlines) == 0 {
		return "", nil
	}

	tmpl := fasttemplate.New(newsTonePrompt, "{{", "}}")
	prompt := tmpl.ExecuteString(map[string]interface{}{
		"headlines": "- " + strings.Join(headlines, "\n- "),
	})

	resp, err := s.openAIClient.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to classify headlines: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	tone := strings.TrimSpace(resp.Choices[0].Message.Content)
	if !strings.HasPrefix(tone, "news tone:") {
		s.logger.Warn("unexpected news tone format", zap.String("content", tone))
		return "", nil
	}
	return tone, nil
}

// fetchHeadlines 获取最近的新闻标题，最多10条
func (s *NewsService) fetchHeadlines(ctx context.Context) ([]string, error) {
	query := url.Values{}
	query.Set("auth_token", s.token)
	query.Set("kind", "news")
	query.Set("public", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cryptoPanicURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cryptopanic status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Title string `json:"title"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	headlines := make([]string, 0, 10)
	for _, r := range payload.Results {
		if r.Title == "" {
			continue
		}
		headlines = append(headlines, r.Title)
		if len(headlines) >= 10 {
			break
		}
	}
	return headlines, nil
}
