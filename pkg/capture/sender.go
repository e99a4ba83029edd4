package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/framecast/pkg/types"
)

// ProcessFramePath is the backend endpoint frames are posted to
const ProcessFramePath = "/process_frame"

// Sender delivers one frame to the backend and returns its answer
type Sender interface {
	Send(ctx context.Context, req types.ProcessFrameRequest) (*types.ProcessFrameResponse, error)
}

// HTTPSender posts frames as JSON to <BaseURL>/process_frame
type HTTPSender struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPSender creates a sender for the backend at baseURL. A zero timeout
// selects two minutes, vision models on CPU are slow.
func NewHTTPSender(baseURL string, timeout time.Duration) (*HTTPSender, error) {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("invalid backend URL: %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &HTTPSender{
		endpoint: strings.TrimSuffix(baseURL, "/") + ProcessFramePath,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Endpoint returns the full URL frames are posted to
func (s *HTTPSender) Endpoint() string {
	return s.endpoint
}

// Send posts req. Non-2xx statuses and bodies that are not JSON are errors.
func (s *HTTPSender) Send(ctx context.Context, req types.ProcessFrameRequest) (*types.ProcessFrameResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send frame: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp types.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var out types.ProcessFrameResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}
