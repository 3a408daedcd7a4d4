package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/san-kum/sentinel-core/server/config"
	"go.uber.org/zap"
)

// Client talks to the external reasoning service over HTTP. A single worker
// goroutine drains the request queue so at most one request is in flight;
// callers block on Ask until a response or the configured timeout. A nil
// *Client is valid and answers every request with Success=false, so every
// caller falls through to its rule-based path.
type Client struct {
	cfg        config.OracleConfig
	httpClient *http.Client
	requests   chan *pendingRequest
	shutdown   chan struct{}
	wg         sync.WaitGroup
	isRunning  bool
	mutex      sync.RWMutex
	onFailure  func()
	logger     *zap.Logger
}

// SetFailureHook registers a callback fired when a request exhausts its
// retries. Safe on a nil client.
func (c *Client) SetFailureHook(hook func()) {
	if c != nil {
		c.onFailure = hook
	}
}

type pendingRequest struct {
	request  *Request
	response chan Response
}

type messageRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient returns nil when the oracle is disabled; callers treat a nil
// client as an always-unavailable oracle.
func NewClient(cfg config.OracleConfig, logger *zap.Logger) *Client {
	if !cfg.Enabled || cfg.APIKey == "" {
		logger.Info("Reasoning oracle disabled, rule-based fallbacks only")
		return nil
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:    5,
				IdleConnTimeout: 60 * time.Second,
			},
		},
		requests:  make(chan *pendingRequest, 64),
		shutdown:  make(chan struct{}),
		isRunning: true,
		logger:    logger,
	}

	c.wg.Add(1)
	go c.worker()

	logger.Info("Reasoning oracle client started",
		zap.String("model", cfg.ModelName),
		zap.Duration("timeout", cfg.Timeout))

	return c
}

// Available reports whether the oracle can be consulted.
func (c *Client) Available() bool {
	if c == nil {
		return false
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.isRunning
}

// Ask submits a request and blocks until a response or timeout. It never
// returns an error; degraded answers carry Success=false.
func (c *Client) Ask(req *Request) Response {
	if c == nil {
		return Response{RequestID: reqID(req), Success: false, ErrorMessage: "oracle unavailable"}
	}

	c.mutex.RLock()
	running := c.isRunning
	c.mutex.RUnlock()
	if !running {
		return Response{RequestID: req.ID, Success: false, ErrorMessage: "oracle shut down"}
	}

	pending := &pendingRequest{request: req, response: make(chan Response, 1)}

	select {
	case c.requests <- pending:
	default:
		return Response{RequestID: req.ID, Success: false, ErrorMessage: "oracle queue full"}
	}

	select {
	case resp := <-pending.response:
		return resp
	case <-time.After(c.cfg.Timeout + time.Second):
		return Response{RequestID: req.ID, Success: false, ErrorMessage: "oracle request timed out"}
	}
}

func reqID(req *Request) string {
	if req == nil {
		return ""
	}
	return req.ID
}

func (c *Client) worker() {
	defer c.wg.Done()

	for {
		select {
		case pending := <-c.requests:
			if pending == nil {
				continue
			}
			resp := c.process(pending.request)
			select {
			case pending.response <- resp:
			default:
			}
		case <-c.shutdown:
			return
		}
	}
}

func (c *Client) process(req *Request) Response {
	prompt := req.Prompt()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying oracle request",
				zap.String("request_id", req.ID),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			time.Sleep(c.cfg.RetryDelay * time.Duration(attempt))
		}

		text, err := c.sendRequest(req.Type, prompt)
		if err == nil {
			resp := parseResponse(text)
			resp.RequestID = req.ID
			return resp
		}
		lastErr = err
	}

	c.logger.Error("Oracle request failed",
		zap.String("request_id", req.ID),
		zap.Error(lastErr))

	if c.onFailure != nil {
		c.onFailure()
	}

	return Response{
		RequestID:    req.ID,
		Success:      false,
		ErrorMessage: lastErr.Error(),
	}
}

func (c *Client) sendRequest(requestType RequestType, prompt string) (string, error) {
	body := messageRequest{
		Model:       c.cfg.ModelName,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		System:      systemPrompt(requestType),
		Messages:    []message{{Role: "user", Content: prompt}},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal oracle request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.cfg.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create oracle request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("oracle HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		return "", fmt.Errorf("oracle service error (status %d): %s",
			httpResp.StatusCode, string(bodyBytes))
	}

	var parsed messageResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode oracle response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("oracle error: %s", parsed.Error.Message)
	}

	var b strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "" || block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("oracle returned an empty response")
	}
	return b.String(), nil
}

// Shutdown stops the worker. In-flight callers get a failure response.
func (c *Client) Shutdown(timeout time.Duration) error {
	if c == nil {
		return nil
	}

	c.mutex.Lock()
	if !c.isRunning {
		c.mutex.Unlock()
		return nil
	}
	c.isRunning = false
	c.mutex.Unlock()

	close(c.shutdown)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("oracle shutdown timeout exceeded")
	}
}

func systemPrompt(requestType RequestType) string {
	base := "You are the reasoning component of an autonomous security monitoring system. " +
		"Be concise and factual. End your answer with a line 'CONFIDENCE: <0.0-1.0>' and, " +
		"when actions are warranted, lines of the form 'ACTION: <TYPE> - <description>' using " +
		"types MONITOR, ALERT, TRACK, ANALYZE_FURTHER, CROSS_REFERENCE, PREDICT or RECOMMEND."

	switch requestType {
	case RequestAnomalyAnalysis:
		return base + " Focus on distinguishing genuine anomalies from false alarms."
	case RequestResponsePlanning:
		return base + " Focus on proportionate, prioritized response steps."
	case RequestPredictiveAnalysis:
		return base + " Focus on likely future movement and behavior."
	case RequestCrossCameraAnalysis:
		return base + " Focus on correlating evidence across camera views."
	default:
		return base
	}
}
