package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/admin"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/config"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/connection"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/database"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/event"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/server"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/text"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/world"
	"github.com/redis/go-redis/v9"
	"os"
	"sync"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "path of the configuration file")
	locale := flag.String("locale", "", "language of server texts, e.g. en or zh-Hans")
	flag.Parse()

	cfg, err := config.ReadConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error occured while reading config: %v\n", err)
		return 1
	}

	loggerCallback := logger.Init(cfg.LogPath, cfg.DebugMode)
	logger.Debug("Application initializing...")
	cleaner := event.NewCleaner()
	ctx := cleaner.Init(loggerCallback)
	defer cleaner.Clean()

	catalog, err := text.NewCatalog(*locale)
	if err != nil {
		logger.FatalF("Error occured while loading texts, details: %v", err)
		return 1
	}

	store, err := database.Open(cfg.Database, cfg.AppName)
	if err != nil {
		logger.FatalF("Error occured while initializing database, details: %v", err)
		return 1
	}
	cleaner.Add(database.NewCloseCallback(store))

	results := database.NewResultQueue(config.Duration(cfg.Database.OperationTimeout))
	cleaner.Add(results)

	w := world.New(world.ConfigFrom(cfg), world.Deps{Store: store, Results: results, Text: catalog})
	if err := w.Init(ctx); err != nil {
		logger.FatalF("Error occured while initializing world, details: %v", err)
		return 1
	}
	cleaner.Add(event.CallableFunc(w.Close))

	manager := connection.NewManager()
	cleaner.Add(manager)

	// 后台服务在 ctx 取消或世界停止后退出
	serviceCtx, stopServices := context.WithCancel(ctx)
	var services sync.WaitGroup
	startService := func(name string, serve func(ctx context.Context) error) {
		services.Add(1)
		go func() {
			defer services.Done()
			if err := serve(serviceCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorF("%s stopped with error: %v", name, err)
			}
		}()
	}

	worldServer := server.New(server.Options{
		Listen:           cfg.Server.Listen,
		AuthTimeout:      config.Duration(cfg.Server.AuthTimeout),
		HeartbeatTimeout: config.Duration(cfg.Server.HeartbeatTimeout),
		MaxConnections:   cfg.Server.MaxConnections,
	}, w, store, manager)
	startService("world server", worldServer.Serve)

	commandTimeout := config.Duration(cfg.Admin.CommandTimeout)
	if cfg.Admin.GRPCListen != "" {
		adminServer, err := admin.Listen(cfg.Admin.GRPCListen, admin.NewGRPCService(w, commandTimeout))
		if err != nil {
			logger.FatalF("Error occured while starting admin server, details: %v", err)
			stopServices()
			services.Wait()
			return 1
		}
		startService("admin server", adminServer.Serve)
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		cleaner.Add(event.CallableFunc(func(context.Context) error { return client.Close() }))
		listener := admin.NewRedisListener(client, cfg.Redis.CommandKey, w, commandTimeout)
		startService("redis listener", listener.Run)
	}

	logger.InfoF("%s started, realm %d", cfg.AppName, cfg.World.RealmID)
	code := w.Run(ctx)

	stopServices()
	services.Wait()
	logger.InfoF("World stopped, exit code %d", code)
	return code
}
