package admin

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

	"example.com/me/rawtap/internal/sink"
	"nhooyr.io/websocket"
)

// Client клиент admin API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient создает клиента; baseURL вида http://host:port
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
	}
}

// Status возвращает состояние всех tap
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/taps", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetTap включает или выключает tap канала
func (c *Client) SetTap(ctx context.Context, prefix string, enabled bool) (*TapStatus, error) {
	var status TapStatus
	path := "/taps/" + url.PathEscape(prefix) + "?enabled=" + strconv.FormatBool(enabled)
	if err := c.do(ctx, http.MethodPut, path, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetWhitespace включает или выключает логирование пустых сообщений
func (c *Client) SetWhitespace(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPut, "/whitespace?enabled="+strconv.FormatBool(enabled), nil)
}

// Watch подключается к /trace и вызывает fn для каждой строки до отмены ctx
// или закрытия соединения сервером
func (c *Client) Watch(ctx context.Context, since uint64, fn func(sink.Entry)) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/trace"
	if since > 0 {
		wsURL += "?since=" + strconv.FormatUint(since, 10)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	for {
		msg, err := ReadMessage(ctx, conn)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		entry, err := DecodeEntry(msg)
		if err != nil {
			return err
		}
		fn(entry)
	}
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
