package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/admin"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/config"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"os"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", config.Default().Admin.GRPCListen, "admin gRPC address")
	author := flag.String("author", "console", "name recorded as the command author")
	timeout := flag.Duration("timeout", 15*time.Second, "how long to wait for the world to answer")
	redisAddr := flag.String("redis", "", "send the command through this redis server instead of gRPC")
	redisKey := flag.String("redis-key", config.Default().Redis.CommandKey, "redis list the world listens on")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <command...>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	line := strings.Join(flag.Args(), " ")
	if line == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var result admin.Result
	var err error
	if *redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer client.Close()
		result, err = admin.SubmitRedis(ctx, client, *redisKey, line, *author, *timeout)
	} else {
		result, err = executeGRPC(ctx, *addr, line, *author)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %s\n", result.Status, result.Message)
	if result.Status != admin.StatusOK {
		os.Exit(1)
	}
}

func executeGRPC(ctx context.Context, addr string, line string, author string) (admin.Result, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return admin.Result{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	return admin.NewClient(conn).Execute(ctx, line, author)
}
