package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/licenceland/licenceland-sync/internal/logger"
)

const defaultPushTimeoutSeconds = 10

// ClientOptions 推送客户端配置
type ClientOptions struct {
	SiteID         string
	Secret         string
	Peers          []string
	TimeoutSeconds int
}

// Client 负责向对端站点推送签名请求。
// 推送是尽力而为的:单个对端失败只记日志,不阻塞业务流程。
type Client struct {
	siteID     string
	signer     *Signer
	peers      []string
	httpClient *http.Client
}

// NewClient 创建推送客户端
func NewClient(options ClientOptions) *Client {
	timeout := options.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultPushTimeoutSeconds
	}
	return &Client{
		siteID: options.SiteID,
		signer: NewSigner(options.Secret, 0),
		peers:  normalizePeers(options.Peers),
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

// HasPeers 是否配置了对端站点
func (c *Client) HasPeers() bool {
	return c != nil && len(c.peers) > 0
}

// Broadcast 向所有对端推送同一请求,返回成功推送的对端数
func (c *Client) Broadcast(ctx context.Context, method, path string, body []byte) int {
	delivered := 0
	for _, peer := range c.peers {
		if err := c.send(ctx, peer, method, path, body); err != nil {
			logger.Warnw("sync_push_failed",
				"peer", peer,
				"method", method,
				"path", path,
				"error", err,
			)
			continue
		}
		delivered++
	}
	return delivered
}

func (c *Client) send(ctx context.Context, peer, method, path string, body []byte) error {
	endpoint, err := url.JoinPath(peer, path)
	if err != nil {
		return fmt.Errorf("join url: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature, err := c.signer.Sign(method, path, timestamp, body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSiteID, c.siteID)
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderMarker, "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("peer responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	logger.Infow("sync_push_delivered",
		"peer", peer,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
	)
	return nil
}

func normalizePeers(peers []string) []string {
	normalized := make([]string, 0, len(peers))
	for _, peer := range peers {
		trimmed := strings.TrimRight(strings.TrimSpace(peer), "/")
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
