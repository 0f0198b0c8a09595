package ragflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/tidwall/gjson"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/answer"
)

var (
	ErrAssistantNotFound = errors.New("assistant not found")
	ErrSessionNotCreated = errors.New("failed to create chat session")
)

// Client RAGFlow HTTP API 客户端
type Client struct {
	baseURL     string
	apiKey      string
	assistant   string
	sessionName string
	httpClient  *http.Client
}

func NewClient(cfg *config.RAGFlowConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/") + "/api/v1",
		apiKey:      cfg.APIKey,
		assistant:   cfg.Assistant,
		sessionName: cfg.SessionName,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// OpenSession 按名称查找对话助手（取第一个）并新建会话
func (c *Client) OpenSession(ctx context.Context) (answer.Answerer, error) {
	chatID, err := c.findAssistant(ctx)
	if err != nil {
		return nil, err
	}

	body, status, err := c.do(ctx, http.MethodPost, "/chats/"+chatID+"/sessions", map[string]string{"name": c.sessionName})
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(body)
	sessionID := res.Get("data.id").String()
	if status/100 != 2 || res.Get("code").Int() != 0 || sessionID == "" {
		return nil, fmt.Errorf("%w: status %d: %s", ErrSessionNotCreated, status, res.Get("message").String())
	}

	log.Info().Str("chat_id", chatID).Str("session_id", sessionID).Str("session_name", c.sessionName).Msg("RAGFlow session created")

	return &Session{client: c, ChatID: chatID, ID: sessionID}, nil
}

func (c *Client) findAssistant(ctx context.Context) (string, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/chats?name="+url.QueryEscape(c.assistant), nil)
	if err != nil {
		return "", err
	}

	res := gjson.ParseBytes(body)
	id := res.Get("data.0.id").String()
	if status/100 != 2 || res.Get("code").Int() != 0 || id == "" {
		log.Warn().Str("assistant", c.assistant).Int("status", status).Str("message", res.Get("message").String()).Msg("RAGFlow assistant lookup failed")
		return "", ErrAssistantNotFound
	}
	return id, nil
}

// do 发送请求并返回响应体。只有传输层失败才返回 error
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		bs, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode json: %w", err)
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("ragflow %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("ragflow %s %s: read body: %w", method, path, err)
	}

	log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Int("bytes", len(raw)).Dur("elapsed", time.Since(start)).Msg("RAGFlow response")
	return raw, resp.StatusCode, nil
}

// Session 一个任务共用的知识库会话
type Session struct {
	client *Client
	ChatID string
	ID     string
}

type completionRequest struct {
	Question  string `json:"question"`
	Stream    bool   `json:"stream"`
	SessionID string `json:"session_id"`
}

// Answer 提问并解析回答。非 2xx 视为无答案
func (s *Session) Answer(ctx context.Context, question string) (answer.Answer, error) {
	log.Info().Str("session_id", s.ID).Str("question", question).Msg("Asking RAGFlow")

	body, status, err := s.client.do(ctx, http.MethodPost, "/chats/"+s.ChatID+"/completions", completionRequest{
		Question:  question,
		Stream:    false,
		SessionID: s.ID,
	})
	if err != nil {
		return answer.Answer{}, err
	}

	if status/100 != 2 {
		log.Warn().Str("session_id", s.ID).Int("status", status).Msg("Failed to get response from RAGFlow")
		return answer.Answer{}, nil
	}
	return answer.ParseCompletion(body), nil
}
