package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"ViewBench/internal/api"
	"ViewBench/internal/model"
	"ViewBench/internal/query"
	"ViewBench/internal/report"
	"ViewBench/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newTable(headers ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(os.Stdout)
	t.SetHeader(headers)
	t.SetAutoFormatHeaders(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

// ---------------- import ----------------

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "把配置中的 CSV 文件导入原始集合（先清空目标集合）",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		counts, err := a.importer().ImportAll(ctx)
		t := newTable("collection", "rows")
		names := make([]string, 0, len(counts))
		for c := range counts {
			names = append(names, c)
		}
		sort.Strings(names)
		for _, c := range names {
			t.Append([]string{c, humanize.Comma(int64(counts[c]))})
		}
		t.Render()
		return err
	}),
}

// ---------------- etl ----------------

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "物化 games、清理非法年份、构建派生视图",
}

func etlStageCmd(stage, short string) *cobra.Command {
	return &cobra.Command{
		Use:   stage,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			res, err := a.pipeline.Run(ctx, stage)
			if res != nil {
				printStageResult(res)
			}
			return err
		}),
	}
}

func printStageResult(res *service.StageResult) {
	if res.Games != nil {
		fmt.Printf("games: 处理 %s 行，写入 %s 行，耗时 %s\n",
			humanize.Comma(res.Games.Processed), humanize.Comma(res.Games.Written), res.Games.Duration.Round(time.Millisecond))
	}
	if res.Stage == service.StageCleanYears || res.Stage == service.StageAll {
		fmt.Printf("clean-years: 删除 %s 行\n", humanize.Comma(res.Deleted))
	}
	if res.Views != nil {
		t := newTable("view", "attempted", "written", "failed")
		for _, v := range model.AllViews {
			r, ok := res.Views.Results[v]
			if !ok {
				continue
			}
			t.Append([]string{v, strconv.Itoa(r.Attempted), strconv.Itoa(r.Written), strconv.Itoa(len(r.Failed))})
		}
		t.Render()
	}
}

// ---------------- indexes ----------------

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "管理优化索引集合",
}

var indexesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "创建全部优化索引（已存在则跳过）",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		names, err := a.indexes.CreateIndexes(ctx, query.OptimizedIndexes)
		for _, n := range names {
			fmt.Println("created", n)
		}
		return err
	}),
}

var indexesDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "删除全部优化索引（不存在则跳过）",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		names, err := a.indexes.DropIndexes(ctx, query.OptimizedIndexes)
		for _, n := range names {
			fmt.Println("dropped", n)
		}
		return err
	}),
}

var indexesListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出当前 schema 的索引",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		infos, err := a.indexes.ListIndexes(ctx)
		if err != nil {
			return err
		}
		t := newTable("name", "table", "definition")
		for _, i := range infos {
			t.Append([]string{i.Name, i.Table, i.Def})
		}
		t.Render()
		return nil
	}),
}

// ---------------- bench ----------------

var benchCmd = &cobra.Command{
	Use:       "bench baseline|optimized",
	Short:     "测量某种策略下的全部查询并写入指标记录",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(model.VariantBaseline), string(model.VariantOptimized)},
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		v, ok := model.ParseVariant(args[0])
		if !ok {
			return fmt.Errorf("未知策略: %s", args[0])
		}
		recs, err := a.runner.RunVariant(ctx, v)
		t := newTable("query", "indexSet", "ms (max)", "trials")
		for _, r := range recs {
			t.Append([]string{r.QueryID, r.IndexSet, strconv.FormatFloat(r.DurationMs, 'f', 3, 64), strconv.Itoa(r.Trials)})
		}
		t.Render()
		return err
	}),
}

// ---------------- query ----------------

var queryVariant string

var queryCmd = &cobra.Command{
	Use:   "query <id>",
	Short: "执行单个查询并以 JSON 输出结果",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		v, ok := model.ParseVariant(queryVariant)
		if !ok {
			return fmt.Errorf("未知策略: %s", queryVariant)
		}
		s, err := a.catalog.Get(args[0], v)
		if err != nil {
			return err
		}
		start := time.Now()
		out, err := s.Run(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"queryId":   s.QueryID(),
			"variant":   s.Variant(),
			"indexSet":  s.IndexSet(),
			"logicHash": s.LogicHash(),
			"ms":        float64(time.Since(start)) / float64(time.Millisecond),
			"outcome":   out,
		})
	}),
}

// ---------------- report ----------------

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "由全部指标记录生成 metrics.csv 与 summary.md",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		s, err := report.Generate(ctx, a.metrics, a.cfg.Report.Dir, a.logger)
		if err != nil {
			return err
		}
		if s.Records == 0 {
			fmt.Println("没有指标记录，未生成报告")
			return nil
		}
		fmt.Println(filepath.Join(a.cfg.Report.Dir, report.MetricsFile))
		fmt.Println(filepath.Join(a.cfg.Report.Dir, report.SummaryFile))
		return nil
	}),
}

// ---------------- full-run ----------------

var fullRunCmd = &cobra.Command{
	Use:   "full-run",
	Short: "删除索引 → baseline 测量 → ETL → 创建索引 → optimized 测量 → 报告",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		return a.fullRun().Run(ctx)
	}),
}

// ---------------- inspect ----------------

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "输出原始集合、games 与各视图的行数",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		colls, err := a.raw.RawCollections(ctx)
		if err != nil {
			return err
		}
		t := newTable("kind", "name", "rows")
		names := make([]string, 0, len(colls))
		for c := range colls {
			names = append(names, c)
		}
		sort.Strings(names)
		for _, c := range names {
			t.Append([]string{"raw", c, humanize.Comma(colls[c])})
		}
		n, err := a.games.CountGames(ctx)
		if err != nil {
			return err
		}
		t.Append([]string{"entity", "games", humanize.Comma(n)})
		for _, v := range model.AllViews {
			cnt, err := a.views.CountView(ctx, v)
			if err != nil {
				return err
			}
			t.Append([]string{"view", v, humanize.Comma(cnt)})
		}
		t.Render()
		return nil
	}),
}

// ---------------- serve ----------------

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 接口（查询、视图、ETL 触发、报告、/metrics、pprof）",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		h := api.NewHandler(a.catalog, a.views, a.metrics, a.pipeline, a.cfg.Queries, a.logger)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           api.NewRouter(h, a.registry, a.cfg.Server.Mode),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			a.logger.Infof("服务启动成功，端口：%d", a.cfg.Server.Port)
			errCh <- srv.ListenAndServe()
		}()
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("启动服务失败: %w", err)
		case <-ctx.Done():
			a.logger.Info("收到退出信号，正在关闭服务")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}),
}

func init() {
	etlCmd.AddCommand(
		etlStageCmd(service.StageGames, "扫描主原始集合，规范化并 upsert 到 games"),
		etlStageCmd(service.StageViews, "由 games 构建全部派生视图"),
		etlStageCmd(service.StageCleanYears, "删除 year 小于合法下限的记录"),
		etlStageCmd(service.StageAll, "games → clean-years → views"),
	)
	indexesCmd.AddCommand(indexesCreateCmd, indexesDropCmd, indexesListCmd)
	queryCmd.Flags().StringVar(&queryVariant, "variant", string(model.VariantOptimized), "baseline 或 optimized")
}
