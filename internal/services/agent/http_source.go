package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ZigmaPulse/pkg/config"
	xhttp "ZigmaPulse/pkg/http"
)

// HTTPLogSource reads the cycle log from the agent's /logs endpoint.
type HTTPLogSource struct {
	name    string
	baseURL string
	client  *xhttp.Client
}

// NewHTTPLogSource builds a source with the agent timeout and retry policy from cfg.
func NewHTTPLogSource(src config.SourceConfig, agent config.AgentConfig) *HTTPLogSource {
	timeout := agent.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLogSource{
		name:    src.Name,
		baseURL: strings.TrimRight(src.URL, "/"),
		client: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithRetry(agent.Retries, agent.RetryDelay),
		),
	}
}

func (s *HTTPLogSource) Name() string { return s.name }

// FetchLogs returns the log text. The body may be plain text or
// JSON {"logs": "..."} where logs is a string or an array of lines.
func (s *HTTPLogSource) FetchLogs(ctx context.Context) (string, error) {
	if s.baseURL == "" {
		return "", fmt.Errorf("source %s: base url not set", s.name)
	}
	var body []byte
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     s.baseURL + "/logs",
		Headers: map[string]string{"Accept": "application/json, text/plain"},
	}, &body)
	if err != nil {
		return "", fmt.Errorf("fetch %s logs: %w", s.name, err)
	}
	return decodeLogs(body)
}

type logsEnvelope struct {
	Logs json.RawMessage `json:"logs"`
}

func decodeLogs(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return string(body), nil
	}
	var env logsEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil || len(env.Logs) == 0 {
		// not our envelope, treat as text
		return string(body), nil
	}
	var text string
	if err := json.Unmarshal(env.Logs, &text); err == nil {
		return text, nil
	}
	var lines []string
	if err := json.Unmarshal(env.Logs, &lines); err != nil {
		return "", fmt.Errorf("decode logs field: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}
