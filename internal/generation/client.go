// Package generation реализует клиент OpenAI-совместимого API генерации текста
// (chat completions). Все исходящие вызовы проходят через circuit breaker,
// чтобы деградация внешнего сервиса не тянула за собой весь чат.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/PromaticSolutions/FluencyAi/internal/config"
	"github.com/PromaticSolutions/FluencyAi/internal/models"
)

// ErrGenerationFailed возвращается при любом сбое внешнего сервиса генерации:
// сетевая ошибка, не-2xx статус, пустой ответ или открытый circuit breaker.
var ErrGenerationFailed = errors.New("generation failed")

// Client — клиент API генерации.
type Client struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient создаёт новый клиент API генерации.
func NewClient(cfg config.Generation) *Client {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "generation",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &Client{
		apiURL:     cfg.GenerationAPIURL,
		apiKey:     cfg.GenerationAPIKey,
		model:      cfg.GenerationModel,
		httpClient: &http.Client{Timeout: cfg.GenerationTimeout},
		breaker:    cb,
	}
}

type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateChat отправляет историю диалога в API и возвращает текст ответа
// ассистента. Любой сбой схлопывается в ErrGenerationFailed с сохранением
// исходной причины в цепочке ошибок.
func (c *Client) GenerateChat(ctx context.Context, messages []models.ChatMessage, temperature float64, maxTokens int) (string, error) {
	const op = "generation.GenerateChat"

	reqBody := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			r.Body.Close()
			return nil, fmt.Errorf("upstream returned %s", r.Status)
		}
		return r, nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %w: unexpected status %s", op, ErrGenerationFailed, resp.Status)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrGenerationFailed, err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%s: %w: empty completion", op, ErrGenerationFailed)
	}
	return completion.Choices[0].Message.Content, nil
}
