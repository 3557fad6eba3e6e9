package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// claudeCodeClient implements Client by shelling out to the Claude Code CLI.
type claudeCodeClient struct {
	cliPath string
	model   string
	cfg     Config
}

func newClaudeCodeClient(cfg Config) (Client, error) {
	cliPath := cfg.ClaudeCodePath
	if cliPath == "" {
		cliPath = "claude"
	}
	if _, err := exec.LookPath(cliPath); err != nil {
		return nil, fmt.Errorf("claude CLI not found at %s: ensure @anthropic-ai/claude-code is installed", cliPath)
	}

	model := cfg.Model
	if model == "" {
		model = "sonnet"
	}

	return &claudeCodeClient{cliPath: cliPath, model: model, cfg: cfg}, nil
}

// Complete runs one non-interactive CLI turn.
func (c *claudeCodeClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + req.Prompt
	}

	cmdCtx, cancel := context.WithTimeout(ctx, c.cfg.timeout())
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, c.cliPath,
		"-p", prompt,
		"--output-format", "json",
		"--model", c.model,
		"--max-turns", "1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if stderr.Len() > 0 {
			return "", fmt.Errorf("claude code error: %s", strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("failed to execute claude: %w", err)
	}

	var response claudeCodeResponse
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		// Older CLI versions print the bare result.
		return strings.TrimSpace(stdout.String()), nil
	}
	if response.IsError {
		return "", fmt.Errorf("claude code error in response: %s", response.Result)
	}
	if response.Result == "" {
		return "", errors.New("empty response from claude code")
	}
	return response.Result, nil
}

type claudeCodeResponse struct {
	Result    string  `json:"result"`
	Type      string  `json:"type"`
	SessionID string  `json:"session_id"`
	IsError   bool    `json:"is_error"`
	TotalCost float64 `json:"total_cost_usd"`
}
