// Command cameleerd is the Cameleer daemon entrypoint: it loads the daemon
// and task configuration from a host module's ConfigProvider, wires the
// queues, static context store, and engine, and runs until signalled.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"cameleer/internal/control"
	"cameleer/internal/engine"
	"cameleer/internal/hostconfig"
	"cameleer/internal/hostmodule"
	"cameleer/internal/queue"
	"cameleer/internal/runtime/supervisor"
	"cameleer/internal/statectx"
	logx "cameleer/pkg/logx"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		instrument string
		norun      bool
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "./cameleer.json", "path to the daemon config file (JSON or YAML)")
	flag.StringVar(&instrument, "instrument", "", `control surface: "none", "stdin", "http", or "http-<port>" (overrides the config file)`)
	flag.BoolVar(&norun, "norun", false, "load and validate configuration, then exit without running the engine")
	flag.StringVar(&logLevel, "loglevel", "", "log level override: trace, debug, info, warn, error")
	flag.Parse()

	hcMgr := hostconfig.NewManager(configPath)
	hcCfg, err := hcMgr.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		return 1
	}
	if instrument != "" {
		hcCfg.Control.Instrument = instrument
	}
	if logLevel != "" {
		hcCfg.Logging.Level = logLevel
	}

	logSvc, log := logx.New(logx.Config{
		Level:   hcCfg.Logging.Level,
		Console: hcCfg.Logging.Console,
		File:    logx.FileConfig(hcCfg.Logging.File),
	})
	defer logSvc.Close()
	hcMgr.SetLogger(log)

	provider, err := hostmodule.Load()
	if err != nil {
		log.Warn("no ConfigProvider registered; running with zero tasks", logx.Err(err))
	}

	engCfg := engine.Config{}
	var queueDefs []engine.QueueDef
	if provider != nil {
		engCfg, queueDefs, err = provider.CameleerConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: CameleerConfig: %v\n", err)
			return 1
		}
	}
	if len(queueDefs) == 0 {
		queueDefs = queueDefsFromHostConfig(hcCfg.Queues)
	}

	queues, err := buildQueues(queueDefs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: building queues: %v\n", err)
		return 1
	}

	store := statectx.Load(hcCfg.StaticContext.Path, hcCfg.StaticContext.ResolvedSerializeInterval(), log)

	eng, err := engine.New(engCfg, queues, store, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: engine.New: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if provider != nil {
		taskCfgs, err := provider.AllTaskConfigs(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: AllTaskConfigs: %v\n", err)
			return 1
		}
		if err := eng.LoadTasks(ctx, taskCfgs); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: LoadTasks: %v\n", err)
			return 1
		}
	}

	if norun {
		log.Info("config validated (norun); exiting")
		return 0
	}

	surface := control.New(eng, log, hcCfg.Control.RateLimitPerSec, hcCfg.Control.RateLimitBurst)
	surface.OnShutdown(cancel)

	sup := supervisor.NewSupervisor(ctx, supervisor.WithLogger(log.With(logx.String("component", "daemon"))))

	switch instrumentKind(hcCfg.Control.Instrument) {
	case "stdin":
		sup.Go0("control.stdin", func(ctx context.Context) {
			if err := surface.ServeStdin(ctx, bufio.NewReader(os.Stdin), os.Stdout); err != nil {
				log.Warn("stdin control surface stopped", logx.Err(err))
			}
		})
	case "http":
		addr := hcCfg.Control.HTTPAddr
		if addr == "" {
			addr = ":8080"
		}
		if port, ok := instrumentPort(hcCfg.Control.Instrument); ok {
			addr = ":" + port
		}
		sup.GoRestart0("control.http", func(ctx context.Context) {
			if err := control.ListenAndServeHTTP(ctx, addr, surface); err != nil {
				log.Error("http control surface stopped", logx.Err(err))
			}
		})
	}

	eng.Run()
	log.Info("engine running", logx.String("config", configPath))

	sup.GoRestart0("hostconfig.watch", func(ctx context.Context) {
		if err := hcMgr.Watch(ctx); err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	})

	<-ctx.Done()
	shutdownCtx := context.Background()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", logx.Err(err))
		return 1
	}
	_ = sup.Stop(shutdownCtx)
	return 0
}

func instrumentKind(instrument string) string {
	switch {
	case instrument == "" || instrument == "none":
		return "none"
	case instrument == "stdin":
		return "stdin"
	case instrument == "http" || strings.HasPrefix(instrument, "http-"):
		return "http"
	default:
		return "none"
	}
}

func instrumentPort(instrument string) (string, bool) {
	if !strings.HasPrefix(instrument, "http-") {
		return "", false
	}
	port := strings.TrimPrefix(instrument, "http-")
	if _, err := strconv.Atoi(port); err != nil {
		return "", false
	}
	return port, true
}

func queueDefsFromHostConfig(qs []hostconfig.QueueConfig) []engine.QueueDef {
	out := make([]engine.QueueDef, 0, len(qs))
	for _, q := range qs {
		kind := queue.KindParallel
		if q.Kind == "cost" {
			kind = queue.KindCost
		}
		out = append(out, engine.QueueDef{
			Name:               q.Name,
			Kind:               kind,
			IsDefault:          q.IsDefault,
			Parallelism:        q.Parallelism,
			Capabilities:       q.Capabilities,
			AllowExclusiveJobs: q.AllowExclusiveJobs,
		})
	}
	return out
}

func buildQueues(defs []engine.QueueDef) ([]queue.Queue, error) {
	out := make([]queue.Queue, 0, len(defs))
	for _, d := range defs {
		switch d.Kind {
		case queue.KindParallel:
			out = append(out, queue.NewParallel(d.Name, d.IsDefault, d.Parallelism))
		case queue.KindCost:
			out = append(out, queue.NewCost(d.Name, d.IsDefault, d.Capabilities, d.AllowExclusiveJobs))
		default:
			return nil, fmt.Errorf("queue %q: unknown kind", d.Name)
		}
	}
	return out, nil
}
