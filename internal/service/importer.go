package service

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"ViewBench/internal/config"
	"ViewBench/internal/interfaces"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Importer 把 CSV（本地路径或 http(s) URL，可为 .gz）导入原始集合
type Importer struct {
	raw    interfaces.RawSource
	client *http.Client
	cfg    config.ImportConfig
	logger *logrus.Logger
}

func NewImporter(raw interfaces.RawSource, client *http.Client, cfg config.ImportConfig, logger *logrus.Logger) *Importer {
	return &Importer{raw: raw, client: client, cfg: cfg, logger: logger}
}

// ImportAll 按配置依次导入；本地文件不存在时跳过，其余错误汇总返回
func (i *Importer) ImportAll(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	var errs []error
	for _, f := range i.cfg.Files {
		n, err := i.Import(ctx, f)
		if errors.Is(err, os.ErrNotExist) {
			i.logger.WithField("source", f.Source).Warn("文件不存在，跳过")
			continue
		}
		if err != nil {
			i.logger.WithError(err).WithField("source", f.Source).Error("导入失败")
			errs = append(errs, err)
			continue
		}
		counts[f.Collection] += n
	}
	return counts, errors.Join(errs...)
}

// Import 导入单个文件：先清空目标集合，再按 import.batch_size 分批插入
func (i *Importer) Import(ctx context.Context, f config.ImportFile) (int, error) {
	body, err := i.open(ctx, f.Source)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	r := csv.NewReader(body)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true
	header, err := r.Read()
	if err == io.EOF {
		i.logger.WithField("source", f.Source).Warn("空文件")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取表头失败 %s: %w", f.Source, err)
	}
	keys := make([]string, len(header))
	for idx, h := range header {
		keys[idx] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	dropped, err := i.raw.DropRaw(ctx, f.Collection)
	if err != nil {
		return 0, fmt.Errorf("清空集合 %s 失败: %w", f.Collection, err)
	}
	i.logger.WithFields(logrus.Fields{"source": f.Source, "collection": f.Collection, "dropped": dropped}).Info("开始导入")

	batchSize := i.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	total := 0
	batch := make([]map[string]any, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := i.raw.InsertRaw(ctx, f.Collection, batch)
		total += n
		if err != nil {
			return fmt.Errorf("插入 %s 失败: %w", f.Collection, err)
		}
		i.logger.Infof("已插入 %s 行到 %s", humanize.Comma(int64(total)), f.Collection)
		batch = make([]map[string]any, 0, batchSize)
		return nil
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("解析 %s 失败: %w", f.Source, err)
		}
		if isBlank(rec) {
			continue
		}
		doc := make(map[string]any, len(keys))
		for idx, k := range keys {
			if k == "" || idx >= len(rec) {
				continue
			}
			doc[k] = ParseCell(rec[idx])
		}
		batch = append(batch, doc)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

func (i *Importer) open(ctx context.Context, source string) (io.ReadCloser, error) {
	var body io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := i.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("下载 %s 失败: %w", source, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("下载 %s 失败: HTTP %d", source, resp.StatusCode)
		}
		body = resp.Body
	} else {
		fh, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		body = fh
	}
	if !strings.HasSuffix(strings.ToLower(source), ".gz") {
		return body, nil
	}
	// 以 Content-Encoding: gzip 下发的 .gz 已被 HTTP 客户端解压，按魔数判断是否仍需解压
	br := bufio.NewReader(body)
	if magic, err := br.Peek(2); err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return &plainFile{Reader: br, raw: body}, nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("解压 %s 失败: %w", source, err)
	}
	return &gzipFile{Reader: gz, raw: body}, nil
}

type plainFile struct {
	io.Reader
	raw io.Closer
}

func (p *plainFile) Close() error { return p.raw.Close() }

type gzipFile struct {
	*gzip.Reader
	raw io.Closer
}

func (g *gzipFile) Close() error {
	g.Reader.Close()
	return g.raw.Close()
}

// ParseCell 空单元格为 null，明显的数值转为 float64，其余保留字符串
func ParseCell(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil && !strings.EqualFold(t, "nan") && !strings.Contains(strings.ToLower(t), "inf") {
		return f
	}
	return s
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
