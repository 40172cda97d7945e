package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/redis/go-redis/v9"
	"time"
)

const (
	popTimeout = 5 * time.Second
	replyTTL   = time.Minute
)

// RedisRequest 写入命令列表的 JSON 结构, ReplyTo 为空时不回写结果
type RedisRequest struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Author  string `json:"author"`
	ReplyTo string `json:"reply_to,omitempty"`
}

type RedisReply struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RedisListener 从 redis 列表中取出管理命令
type RedisListener struct {
	client    redis.UniversalClient
	key       string
	submitter Submitter
	timeout   time.Duration
}

func NewRedisListener(client redis.UniversalClient, key string, submitter Submitter, timeout time.Duration) *RedisListener {
	return &RedisListener{client: client, key: key, submitter: submitter, timeout: timeout}
}

// Run 阻塞直到 ctx 取消
func (l *RedisListener) Run(ctx context.Context) error {
	logger.InfoF("Listening for admin commands on redis list %s", l.key)
	for {
		values, err := l.client.BLPop(ctx, popTimeout, l.key).Result()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			logger.WarnF("Redis BLPOP on %s failed: %v", l.key, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if len(values) != 2 {
			continue
		}
		l.handle(ctx, []byte(values[1]))
	}
}

func (l *RedisListener) handle(ctx context.Context, payload []byte) {
	var request RedisRequest
	if err := json.Unmarshal(payload, &request); err != nil {
		logger.WarnF("Discarding invalid admin request from redis: %v", err)
		return
	}
	if request.Author == "" {
		request.Author = "redis"
	}

	commandCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		commandCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	logger.InfoF("Admin command from %s via redis: %s", request.Author, request.Command)
	result := Execute(commandCtx, l.submitter, request.Command, request.Author)

	if request.ReplyTo == "" {
		return
	}
	data, err := json.Marshal(RedisReply{ID: request.ID, Status: result.Status.String(), Message: result.Message})
	if err != nil {
		logger.ErrorF("Marshal redis reply failed: %v", err)
		return
	}
	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, request.ReplyTo, data)
	pipe.Expire(ctx, request.ReplyTo, replyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.ErrorF("Write redis reply to %s failed: %v", request.ReplyTo, err)
	}
}

// SubmitRedis 把命令写入列表并等待回复
func SubmitRedis(ctx context.Context, client redis.UniversalClient, key string, line string, author string, wait time.Duration) (Result, error) {
	id := uuid.NewString()
	request := RedisRequest{ID: id, Command: line, Author: author, ReplyTo: key + ":reply:" + id}
	data, err := json.Marshal(request)
	if err != nil {
		return Result{}, err
	}
	if err := client.RPush(ctx, key, data).Err(); err != nil {
		return Result{}, fmt.Errorf("push admin command: %w", err)
	}

	values, err := client.BLPop(ctx, wait, request.ReplyTo).Result()
	if errors.Is(err, redis.Nil) {
		return Result{Status: StatusFailed, Message: ErrNoReply.Error()}, ErrNoReply
	}
	if err != nil {
		return Result{}, fmt.Errorf("wait admin reply: %w", err)
	}

	var reply RedisReply
	if err := json.Unmarshal([]byte(values[1]), &reply); err != nil {
		return Result{}, fmt.Errorf("decode admin reply: %w", err)
	}
	status, _ := ParseStatus(reply.Status)
	return Result{Status: status, Message: reply.Message}, nil
}
