package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/url"
	"time"

	"ViewBench/internal/config"

	"github.com/sirupsen/logrus"
)

// NewHTTPClient 下载远程 CSV 用的客户端（代理、超时、gzip 透明解压）
func NewHTTPClient(cfg config.ImportConfig, logger *logrus.Logger) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true, // 由 gzipTransport 自行处理
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			logger.WithError(err).WithField("proxy", cfg.Proxy).Warn("代理地址解析失败，将不使用代理")
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
			logger.WithField("proxy", cfg.Proxy).Info("HTTP客户端已配置代理")
		}
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	return &http.Client{
		Timeout:   timeout,
		Transport: &gzipTransport{next: transport, logger: logger},
	}
}

// gzipTransport 请求时声明 gzip，响应为 gzip 编码时替换 Body 为解压流
type gzipTransport struct {
	next   http.RoundTripper
	logger *logrus.Logger
}

func (t *gzipTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp, nil
	}
	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.logger.WithError(err).WithField("url", req.URL.String()).Warn("gzip解压失败，返回原始响应")
		return resp, nil
	}
	resp.Body = &gzipBody{Reader: gz, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.ContentLength = -1
	return resp, nil
}

type gzipBody struct {
	*gzip.Reader
	raw io.ReadCloser
}

// Close 先关闭解压流，再关闭原始响应体
func (b *gzipBody) Close() error {
	if err := b.Reader.Close(); err != nil {
		b.raw.Close()
		return err
	}
	return b.raw.Close()
}
