// Package blockclient talks to a running block server. It backs the
// `mdexec block` commands that shell helpers call from inside a block.
package blockclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"git.home.luguber.info/inful/mdexec/internal/blockserver"
	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/interp"
)

// Client is a block server client bound to one socket.
type Client struct {
	httpc *http.Client
}

// New returns a client for the server listening on socketPath.
func New(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{httpc: &http.Client{Transport: transport, Timeout: 30 * time.Second}}
}

// FromEnv returns a client for the socket named by MDEXEC_SOCKET.
func FromEnv() (*Client, error) {
	path := os.Getenv(interp.EnvSocket)
	if path == "" {
		return nil, errors.ConfigError(fmt.Sprintf("%s is not set; block commands only work inside a running block", interp.EnvSocket)).Build()
	}
	return New(path), nil
}

// Get returns the single block with id.
func (c *Client) Get(ctx context.Context, id string) (blockserver.Block, error) {
	var b blockserver.Block
	err := c.do(ctx, http.MethodGet, "/blocks/"+url.PathEscape(id), nil, &b)
	return b, err
}

// Query returns every block with id, or every identified block when id is "".
func (c *Client) Query(ctx context.Context, id string) ([]blockserver.Block, error) {
	path := "/blocks"
	if id != "" {
		path += "?id=" + url.QueryEscape(id)
	}
	var resp blockserver.BlocksResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Blocks, nil
}

// Set replaces the content of the block with id.
func (c *Client) Set(ctx context.Context, id, content string) (blockserver.Block, error) {
	var b blockserver.Block
	err := c.do(ctx, http.MethodPut, "/blocks/"+url.PathEscape(id), blockserver.SetBlockRequest{Content: &content}, &b)
	return b, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.WrapError(err, errors.CategoryInternal, "failed to encode request").Build()
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://mdexec"+path, reader)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to build request").Build()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "block server unreachable").Build()
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to read response").Build()
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var e errors.HTTPErrorResponse
		if jerr := json.Unmarshal(data, &e); jerr != nil || e.Error == "" {
			return errors.RuntimeError(fmt.Sprintf("block server returned %s", resp.Status)).Build()
		}
		return errors.FromResponse(e)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "invalid block server response").Build()
	}
	return nil
}
