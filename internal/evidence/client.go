package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	// defaultModel は分析に使用するデフォルトのモデル名。
	defaultModel = "gpt-4o-mini"
	// defaultTemperature は再現性を優先した低い温度。
	defaultTemperature = 0.1
	// defaultMaxTokens はレスポンスのトークン上限。
	defaultMaxTokens = 2048
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 1 << 20
)

// CompletionClient はOpenAI互換のchat completions APIを呼び出すCompleter実装。
// レスポンスフォーマットはJSONオブジェクトに固定される。
type CompletionClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	apiKey     string
	model      string
}

// NewCompletionClient はCompletionClientの新しいインスタンスを生成する。
// modelが空の場合はデフォルトモデルを使用する。
func NewCompletionClient(httpClient *http.Client, logger *slog.Logger, endpoint, apiKey, model string) *CompletionClient {
	if model == "" {
		model = defaultModel
	}
	return &CompletionClient{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
	}
}

var _ Completer = (*CompletionClient)(nil)

type completionRequest struct {
	Model          string              `json:"model"`
	Messages       []completionMessage `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens"`
	ResponseFormat responseFormat      `json:"response_format"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete はシステムプロンプトとユーザープロンプトから構造化JSONを生成する。
// 返り値はモデルが出力したJSON本文そのもの。呼び出し元でパース・検証する。
func (c *CompletionClient) Complete(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error) {
	payload, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []completionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    defaultTemperature,
		MaxTokens:      defaultMaxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("分析APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("分析APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("分析APIがステータス %d を返しました", resp.StatusCode)
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("分析APIのレスポンスに選択肢が含まれていません")
	}

	return []byte(parsed.Choices[0].Message.Content), nil
}
