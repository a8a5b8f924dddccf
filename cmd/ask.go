package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/greenward/greenward/internal/district"
	"github.com/greenward/greenward/internal/resilience"
	"github.com/greenward/greenward/pkg/anthropic"
)

const (
	askTopN         = 3
	askSystemPrompt = "You are an urban planning assistant with access to live ward data. Use the following data to answer questions.\n\n"
	noWardData      = "No ward data available."
)

// wardAsker answers free-form questions about the ward table. With no client
// configured it returns a canned answer built from the same summary.
type wardAsker struct {
	client    anthropic.Client
	breaker   *resilience.Breaker
	model     string
	maxTokens int64
	table     *district.Table
}

// wardSummary describes the top wards by priority score. It reports false
// when the table is empty.
func wardSummary(t *district.Table) (string, bool) {
	if t == nil || t.Len() == 0 {
		return "", false
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Current ward data (top %d by priority score):\n", askTopN)
	for _, r := range t.TopByPriority(askTopN) {
		row := toWardRow(r)
		fmt.Fprintf(&sb, "- %s: Priority Score %.3f (PM2.5: %g, Green Cover: %g%%)\n",
			row.WardName, row.PrioritySci, row.PM25, row.GreenAre)
	}
	if top, ok := t.HighestPriority(); ok {
		row := toWardRow(top)
		fmt.Fprintf(&sb, "Highest priority ward: %s with score %.3f.\n", row.WardName, row.PrioritySci)
	}
	return sb.String(), true
}

// Ask answers question. Failures of the language model degrade to the
// summary instead of an error.
func (a *wardAsker) Ask(ctx context.Context, question string) string {
	summary, ok := wardSummary(a.table)
	if !ok {
		return noWardData
	}

	if a.client == nil {
		return fmt.Sprintf("[Mock] Based on current data: %s Your question: '%s'", summary, question)
	}

	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    askSystemPrompt + summary,
		Messages:  []anthropic.Message{{Role: anthropic.RoleUser, Content: question}},
	}
	resp, err := resilience.Call(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		zap.L().Warn("ask: assistant request failed", zap.Error(err))
		return fmt.Sprintf("Assistant error: %v. Using fallback: Based on current data, %s", err, summary)
	}
	resp.Usage.LogCost(a.model, "ask")

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return fmt.Sprintf("Based on current data, %s", summary)
	}
	return answer
}
