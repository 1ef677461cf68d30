// =============================================================================
// SourceMind 主入口
// =============================================================================
// 论文深度研读工具：多模型并行分析 + 多角色评审讨论 + 历史归档
//
// 使用方法:
//
//	sourcemind analyze 2301.00001                  # 分析 arXiv 论文
//	sourcemind analyze paper.pdf --discuss         # 分析后进入评审讨论
//	sourcemind analyze 2301.00001 --ask "问题"     # 分析后追问
//	sourcemind history list                        # 列出历史记录
//	sourcemind history show <id>                   # 查看一条记录
//	sourcemind history export <id>                 # 导出为 JSON
//	sourcemind history import <file>               # 导入 JSON 记录
//	sourcemind history delete <id>                 # 删除记录
//	sourcemind version                             # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xichengpro/SourceMind/analysis"
	"github.com/xichengpro/SourceMind/config"
	"github.com/xichengpro/SourceMind/discussion"
	"github.com/xichengpro/SourceMind/docload"
	"github.com/xichengpro/SourceMind/history"
	"github.com/xichengpro/SourceMind/internal/telemetry"
	"github.com/xichengpro/SourceMind/llm/factory"
	"github.com/xichengpro/SourceMind/search"
	"github.com/xichengpro/SourceMind/session"
)

// 版本信息（构建时注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 📖 analyze 命令
// =============================================================================

func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	discuss := fs.Bool("discuss", false, "Run the review discussion after analysis")
	mode := fs.String("mode", "", "Discussion mode: dialogue or roundtable (default from config)")
	ask := fs.String("ask", "", "Follow-up question after analysis")
	fullTranslation := fs.Bool("full-translation", false, "Translate the whole paper instead of the abstract")
	useVLM := fs.Bool("vlm", false, "Transcribe scanned pages with the vision model")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sourcemind analyze <arxiv-id|url|pdf-path> [options]")
		os.Exit(1)
	}
	source := fs.Arg(0)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting SourceMind",
		zap.String("version", Version),
		zap.String("source", source),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelProviders.Shutdown(ctx)
	}()

	f, err := factory.New(cfg.Models, logger)
	if err != nil {
		logger.Fatal("Failed to build model factory", zap.Error(err))
	}
	logger.Info("Model categories bound", zap.Strings("categories", f.Providers().List()))

	arxiv := docload.NewArxivClient(docload.DefaultArxivConfig(), logger)
	loader := docload.NewLoader(arxiv, f, logger)
	searcher := search.NewMultiSearcher(cfg.Search, logger)
	graph := analysis.New(f, searcher, cfg.Analysis, logger)

	var archiver session.Archiver
	store, err := history.Open(cfg.History, logger)
	if err != nil {
		logger.Warn("History database not available, archiving disabled", zap.Error(err))
	} else {
		archiver = store
		defer store.Close()
	}

	sess := session.New(loader, graph, f, archiver, cfg.Discussion, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := sess.Analyze(ctx, source, session.AnalyzeOptions{
		UseVLM:          *useVLM,
		FullTranslation: *fullTranslation,
	})
	if err != nil {
		logger.Fatal("Analysis failed", zap.Error(err))
	}

	fmt.Println(st.Report())
	if st.Status() == analysis.RunDonePartial {
		fmt.Fprintln(os.Stderr, "部分分析节点失败，报告中已标注。")
	}

	if *discuss {
		runDiscussion(ctx, sess, discussion.Mode(*mode), logger)
	}

	if *ask != "" {
		answer, err := sess.Ask(ctx, *ask)
		if err != nil {
			logger.Fatal("Q&A failed", zap.Error(err))
		}
		fmt.Printf("\n### 追问\n%s\n\n### 回答\n%s\n", *ask, answer)
	}
}

// runDiscussion 启动评审讨论并把流式事件打印到标准输出。
// Ctrl+C 在当前发言结束后停止讨论。
func runDiscussion(ctx context.Context, sess *session.Session, mode discussion.Mode, logger *zap.Logger) {
	events, err := sess.StartDiscussion(ctx, mode)
	if err != nil {
		logger.Fatal("Failed to start discussion", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		sess.StopDiscussion()
	}()

	for ev := range events {
		switch ev.Type {
		case discussion.EventPhase:
			fmt.Printf("\n%s\n\n", ev.Phase)
		case discussion.EventChunk:
			fmt.Print(ev.Chunk)
		case discussion.EventTurn:
			fmt.Print("\n\n---\n\n")
		case discussion.EventError:
			logger.Error("discussion failed", zap.Error(ev.Err))
		case discussion.EventDone:
			fmt.Printf("\n讨论结束（%s）\n", ev.Status)
		}
	}
}

// =============================================================================
// 🗂️ history 命令
// =============================================================================

func runHistory(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sourcemind history <list|show|export|import|delete> [options]")
		os.Exit(1)
	}
	sub := args[0]

	fs := flag.NewFlagSet("history "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	keyword := fs.String("keyword", "", "Filter records by keyword (list)")
	out := fs.String("out", "", "Output file (export, default stdout)")
	fs.Parse(args[1:])

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	store, err := history.Open(cfg.History, logger)
	if err != nil {
		logger.Fatal("Failed to open history database", zap.Error(err))
	}
	defer store.Close()

	switch sub {
	case "list":
		recs, err := store.List(*keyword)
		if err != nil {
			logger.Fatal("Failed to list records", zap.Error(err))
		}
		if len(recs) == 0 {
			fmt.Println("暂无历史记录。")
			return
		}
		for _, rec := range recs {
			fmt.Printf("%s  %s  %s\n", rec.ID, rec.CreatedAt.Format("2006-01-02 15:04"), rec.Title)
		}
	case "show":
		rec := mustRecord(store, fs, logger)
		fmt.Printf("ID:       %s\n", rec.ID)
		fmt.Printf("标题:     %s\n", rec.Title)
		fmt.Printf("来源:     %s (%s)\n", rec.SourceName, rec.SourceType)
		fmt.Printf("创建时间: %s\n", rec.CreatedAt.Format(time.RFC3339))
		if rec.Keywords != "" {
			fmt.Printf("关键词:   %s\n", rec.Keywords)
		}
		fmt.Printf("\n%s\n", rec.Summary)
		if rec.Transcript != "" {
			fmt.Printf("\n### 评审转写\n\n%s\n", rec.Transcript)
		}
	case "export":
		rec := mustRecord(store, fs, logger)
		data, err := store.ExportJSON(rec.ID)
		if err != nil {
			logger.Fatal("Failed to export record", zap.Error(err))
		}
		if *out == "" {
			fmt.Println(string(data))
			return
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			logger.Fatal("Failed to write export file", zap.Error(err))
		}
		fmt.Printf("已导出到 %s\n", *out)
	case "import":
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "Usage: sourcemind history import <file>")
			os.Exit(1)
		}
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			logger.Fatal("Failed to read import file", zap.Error(err))
		}
		rec, err := store.ImportJSON(data)
		if err != nil {
			logger.Fatal("Failed to import record", zap.Error(err))
		}
		fmt.Printf("已导入记录 %s（%s）\n", rec.ID, rec.Title)
	case "delete":
		rec := mustRecord(store, fs, logger)
		if err := store.Delete(rec.ID); err != nil {
			logger.Fatal("Failed to delete record", zap.Error(err))
		}
		fmt.Printf("已删除记录 %s\n", rec.ID)
	default:
		fmt.Fprintf(os.Stderr, "Unknown history subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func mustRecord(store *history.Store, fs *flag.FlagSet, logger *zap.Logger) *history.Record {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "record id required")
		os.Exit(1)
	}
	rec, err := store.Get(fs.Arg(0))
	if err != nil {
		logger.Fatal("Record not found", zap.Error(err))
	}
	return rec
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("SourceMind %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`SourceMind - 论文深度研读工具

Usage:
  sourcemind <command> [options]

Commands:
  analyze   分析一篇论文（arXiv ID / URL / 本地 PDF）
  history   历史记录管理
  version   显示版本信息
  help      显示帮助

Options for 'analyze':
  --config <path>     配置文件路径 (YAML)
  --discuss           分析完成后进入评审讨论
  --mode <m>          讨论模式: dialogue 或 roundtable
  --ask <question>    分析完成后追问一个问题
  --full-translation  翻译全文而非摘要
  --vlm               用视觉模型转写扫描版 PDF

History subcommands:
  history list [--keyword <kw>]   列出记录
  history show <id>               查看记录详情
  history export <id> [--out f]   导出为 JSON
  history import <file>           导入 JSON 记录
  history delete <id>             删除记录

Examples:
  sourcemind analyze 2301.00001
  sourcemind analyze paper.pdf --discuss --mode roundtable
  sourcemind history list --keyword Transformer
  sourcemind version`)
}

// =============================================================================
// 🔧 配置与日志初始化
// =============================================================================

func loadConfig(configPath string) *config.Config {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		// 报告走标准输出，日志走标准错误
		outputPaths = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
