package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"killfeed-tracker/internal/constants"
)

// ServerStatus is the JSON shape game servers expose on their status
// endpoint.
type ServerStatus struct {
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	Map        string `json:"map"`
	Version    string `json:"version"`
}

// StatusClient queries game-server status endpoints.
type StatusClient struct {
	client *fasthttp.Client
}

func NewStatusClient() *StatusClient {
	return &StatusClient{
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.StatusRequestTimeout,
			WriteTimeout:        constants.StatusRequestTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// Fetch retrieves the current status from a server's status URL.
func (c *StatusClient) Fetch(ctx context.Context, url string) (*ServerStatus, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.StatusRequestTimeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode())
	}

	var status ServerStatus
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &status, nil
}
