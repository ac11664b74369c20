package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/gorm/logger"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // HTTP服务配置
	Database DatabaseConfig `mapstructure:"database"` // PostgreSQL配置
	ETL      ETLConfig      `mapstructure:"etl"`      // 物化流程配置
	Bench    BenchConfig    `mapstructure:"bench"`    // 基准测试配置
	Queries  QueryConfig    `mapstructure:"queries"`  // 五个查询的参数
	Report   ReportConfig   `mapstructure:"report"`   // 报告输出
	Import   ImportConfig   `mapstructure:"import"`   // CSV导入
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig PostgreSQL数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（URL形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	LogLevel        string        `mapstructure:"log_level"`         // GORM日志级别：silent/error/warn/info
}

// ETLConfig 物化流程配置
type ETLConfig struct {
	BatchSize              int    `mapstructure:"batch_size"`              // games 批量upsert大小
	ViewBatchSize          int    `mapstructure:"view_batch_size"`         // 派生视图批量写入大小
	ProgressEvery          int    `mapstructure:"progress_every"`          // 进度日志间隔（行）
	ViewParallelism        int    `mapstructure:"view_parallelism"`        // 视图并行写入数
	MinValidYear           int    `mapstructure:"min_valid_year"`          // 合法年份下限
	GamesCollection        string `mapstructure:"games_collection"`        // 主原始集合
	DesignersCollection    string `mapstructure:"designers_collection"`    // 设计师关系集合
	PublishersCollection   string `mapstructure:"publishers_collection"`   // 出版商关系集合
	DistributionCollection string `mapstructure:"distribution_collection"` // 评分分布集合
}

// BenchConfig 基准测试配置
type BenchConfig struct {
	Trials         int    `mapstructure:"trials"`          // 预热后的计时次数
	DatasetVersion string `mapstructure:"dataset_version"` // 写入每条指标记录
	SampleSize     int    `mapstructure:"sample_size"`     // 结果样本条数
}

// QueryConfig 五个基准查询的参数
type QueryConfig struct {
	QualityThreshold float64 `mapstructure:"quality_threshold"` // Q1：avgRating 严格大于该值
	MechanicsLimit   int     `mapstructure:"mechanics_limit"`   // Q1：返回机制数
	ThemesLimit      int     `mapstructure:"themes_limit"`      // Q2：返回游戏数
	ThemeBuckets     []int   `mapstructure:"theme_buckets"`     // Q2：主题数分桶边界
	PairMinRatings   int64   `mapstructure:"pair_min_ratings"`  // Q3：组合最少评分数
	PairsLimit       int     `mapstructure:"pairs_limit"`       // Q3：返回组合数
	RanksLimit       int     `mapstructure:"ranks_limit"`       // Q5：返回条数
	PctThreshold     float64 `mapstructure:"pct_threshold"`     // Q5：高分桶下限
}

// ReportConfig 报告输出配置
type ReportConfig struct {
	Dir string `mapstructure:"dir"` // metrics.csv / summary.md 输出目录
}

// ImportConfig CSV导入配置
type ImportConfig struct {
	BatchSize int          `mapstructure:"batch_size"` // 每批插入行数
	Timeout   int          `mapstructure:"timeout"`    // 远程下载超时（秒）
	Proxy     string       `mapstructure:"proxy"`      // 代理地址
	Files     []ImportFile `mapstructure:"files"`      // 待导入文件列表
}

// ImportFile 单个CSV来源
type ImportFile struct {
	Source     string `mapstructure:"source"`     // 本地路径或 http(s) URL
	Collection string `mapstructure:"collection"` // 目标原始集合
}

// GormLogLevel 将配置中的字符串转换为GORM日志级别
func (d *DatabaseConfig) GormLogLevel() logger.LogLevel {
	switch d.LogLevel {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("etl.batch_size", 1000)
	v.SetDefault("etl.view_batch_size", 500)
	v.SetDefault("etl.progress_every", 5000)
	v.SetDefault("etl.view_parallelism", 3)
	v.SetDefault("etl.min_valid_year", 1000)
	v.SetDefault("etl.games_collection", "games_raw")
	v.SetDefault("etl.designers_collection", "designers_raw")
	v.SetDefault("etl.publishers_collection", "publishers_raw")
	v.SetDefault("etl.distribution_collection", "ratings_distribution_raw")

	v.SetDefault("bench.trials", 5)
	v.SetDefault("bench.dataset_version", "v1")
	v.SetDefault("bench.sample_size", 5)

	v.SetDefault("queries.quality_threshold", 8.0)
	v.SetDefault("queries.mechanics_limit", 50)
	v.SetDefault("queries.themes_limit", 100)
	v.SetDefault("queries.theme_buckets", []int{0, 6, 11, 1000})
	v.SetDefault("queries.pair_min_ratings", 500)
	v.SetDefault("queries.pairs_limit", 20)
	v.SetDefault("queries.ranks_limit", 100)
	v.SetDefault("queries.pct_threshold", 8.0)

	v.SetDefault("report.dir", "report")

	v.SetDefault("import.batch_size", 1000)
	v.SetDefault("import.timeout", 60)
}

// LoadConfig 加载配置文件（默认 ./config/config.yaml），敏感项从 .env 覆盖（不提交 git）
// path 非空时直接读取该文件
func LoadConfig(path string) (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		// 没有配置文件时使用默认值，文件存在但格式错误则报错
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 2. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("VIEWBENCH_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("VIEWBENCH_IMPORT_PROXY"); v != "" {
		cfg.Import.Proxy = v
	}
}

// Validate 校验会导致运行期行为异常的配置
func (c *Config) Validate() error {
	if c.ETL.BatchSize <= 0 || c.ETL.ViewBatchSize <= 0 {
		return fmt.Errorf("etl.batch_size 与 etl.view_batch_size 必须为正数")
	}
	if c.Bench.Trials <= 0 {
		return fmt.Errorf("bench.trials 必须为正数")
	}
	if len(c.Queries.ThemeBuckets) < 2 {
		return fmt.Errorf("queries.theme_buckets 至少需要两个边界")
	}
	for i := 1; i < len(c.Queries.ThemeBuckets); i++ {
		if c.Queries.ThemeBuckets[i] <= c.Queries.ThemeBuckets[i-1] {
			return fmt.Errorf("queries.theme_buckets 必须严格递增")
		}
	}
	return nil
}
