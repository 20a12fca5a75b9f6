// Package commentary produces short narrative summaries of backtest and
// optimization results through a text-generation model.
package commentary

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"

	"strategy-lab/internal/domain"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty commentary response")

// Commentator writes narrative commentary for results.
type Commentator interface {
	Backtest(ctx context.Context, result *domain.BacktestResult) (string, error)
	Optimization(ctx context.Context, result *domain.OptimizationResult) (string, error)
}

// contentGenerator is the subset of genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements Commentator with the Gemini API.
type Gemini struct {
	models contentGenerator
	model  string
	config *genai.GenerateContentConfig
}

// Compile-time interface check.
var _ Commentator = (*Gemini)(nil)

// NewGemini creates a Gemini commentator. An empty apiKey lets the client
// read GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	var cfg *genai.ClientConfig
	if apiKey != "" {
		cfg = &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models contentGenerator, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		models: models,
		model:  model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		},
	}
}

const systemInstruction = `You are a quantitative analyst reviewing simulated trading results.
Write three to five plain sentences for a portfolio manager. Mention the main strength,
the main weakness, and one concrete parameter to revisit. Do not give investment advice.`

// Backtest comments on a single backtest.
func (g *Gemini) Backtest(ctx context.Context, result *domain.BacktestResult) (string, error) {
	return g.generate(ctx, BacktestPrompt(result))
}

// Optimization comments on an optimized allocation.
func (g *Gemini) Optimization(ctx context.Context, result *domain.OptimizationResult) (string, error) {
	return g.generate(ctx, OptimizationPrompt(result))
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("generate commentary: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// BacktestPrompt renders the facts of a backtest the model comments on.
func BacktestPrompt(r *domain.BacktestResult) string {
	m := r.Metrics
	var b strings.Builder
	fmt.Fprintf(&b, "Strategy %s on %s, initial capital %.2f.\n", r.StrategyID, r.Symbol, r.InitialCapital)
	if len(r.Params) > 0 {
		b.WriteString("Parameters:")
		for _, k := range r.Params.Keys() {
			fmt.Fprintf(&b, " %s=%g", k, r.Params[k])
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Final capital %.2f, total return %.2f%%.\n", m.FinalCapital, m.TotalReturnPct)
	fmt.Fprintf(&b, "Trades %d (wins %d, losses %d), win rate %.1f%%, profit factor %.2f.\n",
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate, m.ProfitFactor)
	fmt.Fprintf(&b, "Average win %.2f, average loss %.2f.\n", m.AvgWinningTrade, m.AvgLosingTrade)
	fmt.Fprintf(&b, "Sharpe ratio %.2f, max drawdown %.2f%%.\n", m.SharpeRatio, m.MaxDrawdownPct)
	if r.OpenPosition != nil {
		fmt.Fprintf(&b, "A %s position of %.0f units opened at %.2f is still open.\n",
			r.OpenPosition.Side, r.OpenPosition.Quantity, r.OpenPosition.EntryPrice)
	}
	return b.String()
}

// OptimizationPrompt renders the facts of an allocation the model comments on.
func OptimizationPrompt(r *domain.OptimizationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Portfolio optimized for %s.\n", r.Method)
	fmt.Fprintf(&b, "Expected annual return %.2f%%, volatility %.2f%%, Sharpe ratio %.2f.\n",
		r.ExpectedReturn*100, r.Volatility*100, r.SharpeRatio)

	tickers := make([]string, 0, len(r.Weights))
	for t := range r.Weights {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	b.WriteString("Weights:")
	for _, t := range tickers {
		fmt.Fprintf(&b, " %s=%.1f%%", t, r.Weights[t]*100)
	}
	b.WriteString("\n")
	return b.String()
}
