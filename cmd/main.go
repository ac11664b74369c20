package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "viewbench",
	Short:         "桌游数据集上实时聚合与物化视图的查询性能对比",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径（默认 ./config/config.yaml）")
	rootCmd.AddCommand(
		importCmd,
		etlCmd,
		indexesCmd,
		benchCmd,
		queryCmd,
		reportCmd,
		fullRunCmd,
		inspectCmd,
		serveCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
