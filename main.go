package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/arbiter/internal/config"
	"github.com/any-hub/arbiter/internal/logging"
	"github.com/any-hub/arbiter/internal/server"
	"github.com/any-hub/arbiter/internal/server/routes"
	"github.com/any-hub/arbiter/internal/storage"
	"github.com/any-hub/arbiter/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	refreshOnly bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["units"] = len(cfg.Units)
		fields["arbiters"] = cfg.ArbiterCount()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → Manager → 预加载单元 → 首次刷新 → 诊断服务（可选）。
	manager := storage.NewManagerFromConfig(cfg, logger)
	if err := manager.Preload(cfg.Units); err != nil {
		fmt.Fprintf(stdErr, "预加载单元失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["units"] = manager.Len()
	fields["server_url"] = cfg.Global.ServerURL
	fields["listen_port"] = cfg.Global.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refreshed, err := manager.RefreshAll(ctx, cfg.Global.RefreshConcurrency)
	if err != nil {
		fmt.Fprintf(stdErr, "刷新单元失败: %v\n", err)
		return 1
	}

	if opts.refreshOnly {
		if err := printSnapshot(manager, refreshed); err != nil {
			fmt.Fprintf(stdErr, "输出结果失败: %v\n", err)
			return 1
		}
		return 0
	}

	if cfg.Global.ListenPort == 0 {
		return 0
	}
	if err := startHTTPServer(cfg, manager, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("arbiter", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		refresh    bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ARBITER_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&refresh, "refresh", false, "刷新全部远端单元并输出快照后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ARBITER_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		refreshOnly: refresh,
		showVersion: showVer,
	}, nil
}

// printSnapshot 以 JSON 输出 alias → data 快照。
func printSnapshot(manager *storage.Manager, refreshed int) error {
	units := make(map[string]any, manager.Len())
	for _, alias := range manager.Aliases() {
		if held, ok := manager.GetUnit(alias); ok {
			units[alias] = held.Data()
		}
	}
	enc := json.NewEncoder(stdOut)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"refreshed": refreshed,
		"units":     units,
	})
}

func startHTTPServer(cfg *config.Config, manager *storage.Manager, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   manager,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterUnitRoutes(app, manager)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 诊断服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
