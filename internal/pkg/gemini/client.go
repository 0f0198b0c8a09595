package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"google.golang.org/genai"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/answer"
)

// Client 兜底问答使用的 Gemini 模型
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewClient baseURL 非空时覆盖 Gemini API 地址
func NewClient(ctx context.Context, cfg *config.FallbackConfig, baseURL string) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not configured")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	log.Info().Str("model", cfg.Model).Dur("timeout", timeout).Msg("Gemini fallback initialized")

	return &Client{
		client:  client,
		model:   cfg.Model,
		timeout: timeout,
	}, nil
}

// Answer 单轮生成，Reference 为模型名
func (c *Client) Answer(ctx context.Context, question string) (answer.Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(question)},
		},
	}, nil)
	if err != nil {
		return answer.Answer{}, fmt.Errorf("gemini generate content: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
		break
	}

	log.Info().Str("model", c.model).Int("response_length", sb.Len()).Dur("duration", time.Since(start)).Msg("Gemini answer received")

	return answer.Answer{Text: sb.String(), Reference: c.model}, nil
}
