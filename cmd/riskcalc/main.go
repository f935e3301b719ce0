// riskcalc 命令行入口
//
//	riskcalc [-config path] run     用参考参数算一次期权价格和 VaR 并打印
//	riskcalc [-config path] serve   启动服务 (HTTP + NATS + Kafka)

package main

import (
	"flag"
	"fmt"
	"os"

	"max.com/riskcalc/pkg/config"
	"max.com/riskcalc/pkg/logger"
	"max.com/riskcalc/pkg/risk"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (yaml/toml/json)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] run|serve\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	mode := flag.Arg(0)
	if mode == "" {
		mode = "run"
	}

	// 1. 配置
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	// 2. 日志
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}

	// 3. 雪花节点
	if err := risk.InitSnowflake(cfg.Snowflake.NodeID); err != nil {
		fmt.Fprintf(os.Stderr, "init snowflake failed: %v\n", err)
		os.Exit(1)
	}

	switch mode {
	case "run":
		err = runOnce(cfg, os.Stdout)
	case "serve":
		err = serve(cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Get().Error("riskcalc exited with error", "mode", mode, "error", err)
		os.Exit(1)
	}
}
