package sync

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"time"
)

// 签名协议使用的 HTTP 头
const (
	HeaderSiteID    = "X-LL-Id"
	HeaderTimestamp = "X-LL-Timestamp"
	HeaderSignature = "X-LL-Signature"
	HeaderMarker    = "X-LL-Sync"
)

// DefaultReplayWindowSeconds 默认重放窗口
const DefaultReplayWindowSeconds = 300

var (
	// ErrMissingSecret 共享密钥未配置,一律拒绝
	ErrMissingSecret = errors.New("sync: shared secret not configured")
	// ErrMissingHeaders 请求缺少签名头
	ErrMissingHeaders = errors.New("sync: missing signature headers")
	// ErrStaleTimestamp 时间戳超出重放窗口
	ErrStaleTimestamp = errors.New("sync: timestamp outside replay window")
	// ErrBadSignature 签名校验失败
	ErrBadSignature = errors.New("sync: signature mismatch")
)

// Signer 负责出入站请求的 HMAC 签名与校验
type Signer struct {
	secret       string
	replayWindow time.Duration
}

// NewSigner 创建签名器,windowSeconds <= 0 时使用默认重放窗口
func NewSigner(secret string, windowSeconds int) *Signer {
	if windowSeconds <= 0 {
		windowSeconds = DefaultReplayWindowSeconds
	}
	return &Signer{
		secret:       secret,
		replayWindow: time.Duration(windowSeconds) * time.Second,
	}
}

// CanonicalString 拼接签名串: METHOD \n PATH \n TIMESTAMP \n BODY
func CanonicalString(method, path, timestamp string, body []byte) string {
	return method + "\n" + path + "\n" + timestamp + "\n" + string(body)
}

// Sign 计算签名,返回 base64 编码的 HMAC-SHA256
func (s *Signer) Sign(method, path, timestamp string, body []byte) (string, error) {
	if s.secret == "" {
		return "", ErrMissingSecret
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(CanonicalString(method, path, timestamp, body)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify 校验入站请求签名。PATH 的编码形式不唯一,
// 对原始路径和解码后的路径分别计算,任一匹配即通过。
func (s *Signer) Verify(method, rawPath, timestamp, signature string, body []byte, now time.Time) error {
	if s.secret == "" {
		return ErrMissingSecret
	}
	if rawPath == "" || timestamp == "" || signature == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	diff := now.Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	if time.Duration(diff)*time.Second > s.replayWindow {
		return ErrStaleTimestamp
	}

	for _, candidate := range pathCandidates(rawPath) {
		expected, err := s.Sign(method, candidate, timestamp, body)
		if err != nil {
			return err
		}
		if hmac.Equal([]byte(expected), []byte(signature)) {
			return nil
		}
	}
	return ErrBadSignature
}

// pathCandidates 返回参与签名的路径候选,去重后保持顺序
func pathCandidates(rawPath string) []string {
	candidates := []string{rawPath}
	if decoded, err := url.PathUnescape(rawPath); err == nil && decoded != rawPath {
		candidates = append(candidates, decoded)
	}
	if escaped := (&url.URL{Path: rawPath}).EscapedPath(); escaped != rawPath {
		candidates = append(candidates, escaped)
	}
	return candidates
}
