package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/lib/logger"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/usecase"
)

const refreshPath = "/api/v1/competitor-prices/refresh"

// RefreshClient triggers the refresh endpoint of a running server, so a
// scheduler can run the CLI without database credentials.
type RefreshClient interface {
	TriggerRefresh(ctx context.Context, opts usecase.RefreshOptions) (map[pricing.Source]usecase.SourceRefreshResult, error)
}

type httpRefreshClient struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

type refreshEnvelope struct {
	Status  int                                            `json:"status"`
	Message string                                         `json:"message"`
	Data    map[pricing.Source]usecase.SourceRefreshResult `json:"data"`
}

// NewRefreshClient returns nil when baseURL is empty. A zero timeout means
// five minutes.
func NewRefreshClient(baseURL string, timeout time.Duration, l *log.Logger) RefreshClient {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &httpRefreshClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.OrDefault(l),
	}
}

func (c *httpRefreshClient) TriggerRefresh(ctx context.Context, opts usecase.RefreshOptions) (map[pricing.Source]usecase.SourceRefreshResult, error) {
	if c == nil {
		return nil, errors.New("nil refresh client")
	}
	if c.client == nil {
		return nil, errors.New("nil http client")
	}

	q := url.Values{}
	q.Set("force", strconv.FormatBool(opts.Force))
	q.Set("nocache", strconv.FormatBool(opts.NoCache))
	if len(opts.Sources) > 0 {
		names := make([]string, 0, len(opts.Sources))
		for _, s := range opts.Sources {
			names = append(names, string(s))
		}
		q.Set("source", strings.Join(names, ","))
	}
	endpoint := c.baseURL + refreshPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		bodyStr := strings.TrimSpace(string(rb))
		c.logger.Error("refresh trigger failed", "endpoint", endpoint, "status", resp.StatusCode, "body", bodyStr)
		return nil, fmt.Errorf("refresh trigger failed: status=%d body=%s", resp.StatusCode, bodyStr)
	}

	var out refreshEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if out.Data == nil {
		out.Data = map[pricing.Source]usecase.SourceRefreshResult{}
	}
	return out.Data, nil
}

var _ RefreshClient = (*httpRefreshClient)(nil)
