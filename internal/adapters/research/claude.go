// Package research implementa el Researcher contra el Messages API de
// Anthropic con web search. Es el único adapter que cuesta dinero por
// llamada: el caller (la research cache) controla budget y rate limit,
// aquí solo se hace la llamada y se parsea la respuesta.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alejandrodnm/evbot/internal/domain"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultModel   = "claude-sonnet-4-20250514"
	messagesPath   = "/v1/messages"

	maxTokens     = 2048
	maxWebSearch  = 3
	maxSources    = 5
	promptMaxDesc = 1000
)

// Config configura el cliente de research.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Timeout del HTTP client. El caller suele imponer además su propio
	// deadline por contexto.
	Timeout time.Duration
}

// Claude implementa ports.Researcher.
type Claude struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewClaude crea el researcher. Falla si no hay API key.
func NewClaude(cfg Config) (*Claude, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("research.NewClaude: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Claude{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Research investiga un mercado: una llamada al Messages API con la tool de
// web search, y parseo del bloque JSON de la respuesta. Cualquier fallo de
// red o de proveedor se envuelve en domain.ErrResearchUnavailable.
func (c *Claude) Research(ctx context.Context, query domain.ResearchQuery) (domain.ResearchResult, error) {
	req := messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Tools: []toolSpec{{
			Type:    "web_search_20250305",
			Name:    "web_search",
			MaxUses: maxWebSearch,
		}},
		Messages: []message{{
			Role:    "user",
			Content: buildPrompt(query),
		}},
	}

	b, err := json.Marshal(req)
	if err != nil {
		return domain.ResearchResult{}, fmt.Errorf("research.Research: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+messagesPath, bytes.NewReader(b))
	if err != nil {
		return domain.ResearchResult{}, fmt.Errorf("research.Research: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.ResearchResult{}, fmt.Errorf("research.Research: %w: %w",
			domain.ErrResearchUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.ResearchResult{}, fmt.Errorf("research.Research: status %d: %s: %w",
			resp.StatusCode, string(body), domain.ErrResearchUnavailable)
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return domain.ResearchResult{}, fmt.Errorf("research.Research: decode: %w: %w",
			domain.ErrResearchUnavailable, err)
	}

	text, sources := extractContent(msgResp)
	if text == "" {
		return domain.ResearchResult{}, fmt.Errorf("research.Research: empty response: %w",
			domain.ErrResearchUnavailable)
	}

	result := parseResearchText(text)
	result.MarketID = query.MarketID
	result.Question = query.Question
	if len(sources) > maxSources {
		sources = sources[:maxSources]
	}
	result.Sources = sources

	slog.Debug("research call complete",
		"market", query.MarketID,
		"probability", result.Probability,
		"confidence", result.Confidence,
		"sources", len(sources),
		"took", time.Since(start).Truncate(time.Millisecond),
	)
	return result, nil
}

// buildPrompt arma el prompt de análisis. Las context notes de ciclos
// anteriores dan continuidad cualitativa, nunca números de capital.
func buildPrompt(q domain.ResearchQuery) string {
	var sb strings.Builder
	sb.WriteString("Analyze this prediction market and provide your assessment:\n\n")
	sb.WriteString("**Market Question:** " + q.Question + "\n\n")

	if q.Focus != "" {
		focus := q.Focus
		if len(focus) > promptMaxDesc {
			focus = focus[:promptMaxDesc]
		}
		sb.WriteString("**Research Focus:** " + focus + "\n\n")
	}
	if len(q.ContextNotes) > 0 {
		sb.WriteString("**Context from previous analysis cycles:**\n")
		for _, note := range q.ContextNotes {
			sb.WriteString("- " + note + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`Please search for the latest relevant information and provide:
1. A brief summary of the current situation (3-5 sentences)
2. Your estimated probability that this resolves "Yes" (0.0 to 1.0)
3. Your confidence level in this estimate (0.0 to 1.0)
4. Key factors affecting this outcome (list of 3-5 factors)

Respond in this exact JSON format:
{
    "summary": "Your analysis summary...",
    "estimated_probability": 0.XX,
    "confidence": 0.XX,
    "key_factors": ["Factor 1", "Factor 2", "Factor 3"]
}

Be honest about uncertainty. If you cannot find enough information, set confidence below 0.5.
`)
	return sb.String()
}

// extractContent saca el primer bloque de texto y los URLs de los resultados
// de web search.
func extractContent(resp messagesResponse) (text string, sources []string) {
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if text == "" {
				text = block.Text
			}
		case "web_search_tool_result":
			for _, r := range block.ToolContent {
				if r.URL != "" {
					sources = append(sources, r.URL)
				}
			}
		}
	}
	return text, sources
}

// --- DTOs del Messages API ---

type messagesRequest struct {
	Model     string     `json:"model"`
	MaxTokens int        `json:"max_tokens"`
	Tools     []toolSpec `json:"tools,omitempty"`
	Messages  []message  `json:"messages"`
}

type toolSpec struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type        string            `json:"type"`
	Text        string            `json:"text"`
	ToolContent []searchResultRef `json:"content"`
}

type searchResultRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
