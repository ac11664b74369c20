package main

import (
	"context"
	"fmt"

	"ViewBench/internal/bench"
	"ViewBench/internal/config"
	"ViewBench/internal/interfaces"
	"ViewBench/internal/query"
	"ViewBench/internal/report"
	"ViewBench/internal/repository"
	"ViewBench/internal/service"
	"ViewBench/internal/utils/httpclient"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app 一次命令执行所需的全部依赖
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *gorm.DB

	raw     interfaces.RawSource
	games   interfaces.GameStore
	views   interfaces.ViewStore
	metrics interfaces.MetricStore
	indexes interfaces.IndexAdmin

	catalog  *query.Catalog
	pipeline *service.Pipeline
	runner   *bench.Runner
	registry *prometheus.Registry
}

func newApp() (*app, error) {
	// 1. 加载配置文件
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置文件失败: %w", err)
	}

	// 2. 初始化日志
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// 3. 连接 PostgreSQL（库不存在则先创建）并迁移表结构
	db, err := repository.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		raw:      repository.NewRawRepository(db),
		games:    repository.NewGameRepository(db),
		views:    repository.NewViewRepository(db),
		metrics:  repository.NewMetricRepository(db),
		indexes:  repository.NewIndexAdmin(db),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 4. 组装查询目录、ETL 流水线与测量器
	a.catalog = query.NewCatalog(query.Deps{
		Baseline: repository.NewLiveAggregator(db, false),
		Indexed:  repository.NewLiveAggregator(db, true),
		Views:    a.views,
		Params:   cfg.Queries,
		MinYear:  cfg.ETL.MinValidYear,
		Logger:   logger,
	})
	a.pipeline = service.NewPipeline(
		service.NewMaterializer(a.raw, a.games, cfg.ETL, logger),
		service.NewViewService(a.games, a.views, cfg.ETL, cfg.Queries, logger),
		logger,
	)
	harness := bench.NewHarness(a.metrics, cfg.Bench.Trials, cfg.Bench.DatasetVersion, bench.NewMetrics(a.registry), logger)
	a.runner = bench.NewRunner(a.catalog, harness, cfg.Bench.SampleSize, logger)
	return a, nil
}

func (a *app) importer() *service.Importer {
	return service.NewImporter(a.raw, httpclient.NewHTTPClient(a.cfg.Import, a.logger), a.cfg.Import, a.logger)
}

func (a *app) report(ctx context.Context) error {
	_, err := report.Generate(ctx, a.metrics, a.cfg.Report.Dir, a.logger)
	return err
}

func (a *app) fullRun() *service.FullRun {
	return service.NewFullRun(a.indexes, query.OptimizedIndexes, a.pipeline, a.runner, a.report, a.logger)
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// withApp 构建依赖后执行 fn，结束时关闭连接
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), a, args)
	}
}
