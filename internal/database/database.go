package database

import (
	"context"
	"crypto/tls"
	"fmt"
	c "github.com/life-stream-dev/life-stream-go-world-server/internal/config"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"net/url"
	"time"
)

type mongoIndex struct {
	collection string
	keys       bson.D
	name       string
	unique     bool
}

var mongoIndexes = []mongoIndex{
	{SavedVariableCollectionName, bson.D{{Key: "name", Value: 1}}, "saved_variables_name_unique", true},
	{AccountCollectionName, bson.D{{Key: "account_id", Value: 1}}, "accounts_account_id_unique", true},
	{AccountCollectionName, bson.D{{Key: "username", Value: 1}}, "accounts_username", false},
	{AccountCollectionName, bson.D{{Key: "characters", Value: 1}}, "accounts_characters", false},
	{AccountCollectionName, bson.D{{Key: "last_ip", Value: 1}}, "accounts_last_ip", false},
	{AccountBanCollectionName, bson.D{{Key: "account_id", Value: 1}, {Key: "active", Value: 1}}, "account_bans_account_active", false},
	{IPBanCollectionName, bson.D{{Key: "target", Value: 1}}, "ip_bans_target_unique", true},
	{UptimeCollectionName, bson.D{{Key: "realm_id", Value: 1}, {Key: "start_time", Value: 1}}, "uptime_realm_start_unique", true},
	{RealmCollectionName, bson.D{{Key: "realm_id", Value: 1}}, "realms_realm_id_unique", true},
	{LogCollectionName, bson.D{{Key: "at", Value: 1}}, "logs_at", false},
}

// ConnectMongo 建立连接、校验连通性并创建索引
func ConnectMongo(config c.DatabaseConfig, appName string) (*MongoStore, error) {
	logger.DebugF("Connecting to database...")

	operationTimeout := c.Duration(config.OperationTimeout)
	if operationTimeout <= 0 {
		operationTimeout = 5 * time.Second
	}

	// 编码特殊字符
	encodedUser := url.QueryEscape(config.Username)
	encodedPass := url.QueryEscape(config.Password)
	databaseUrl := fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=admin",
		encodedUser, encodedPass,
		config.Host,
		config.Port,
	)
	if config.Username == "" {
		databaseUrl = fmt.Sprintf("mongodb://%s:%d/", config.Host, config.Port)
	}

	clientOptions := options.Client().ApplyURI(databaseUrl).SetAppName(appName)
	// 连接池配置
	clientOptions.SetMinPoolSize(config.MinPoolSize)
	clientOptions.SetMaxPoolSize(config.MaxPoolSize)
	clientOptions.SetMaxConnIdleTime(c.Duration(config.ConnectIdleTimeout))
	// 超时限制
	clientOptions.SetConnectTimeout(c.Duration(config.ConnectTimeout))
	clientOptions.SetSocketTimeout(c.Duration(config.SocketTimeout))
	// 心跳包
	clientOptions.SetHeartbeatInterval(c.Duration(config.Heartbeat))
	if config.UseTLS {
		clientOptions.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	// 连接池监控
	clientOptions.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				logger.DebugF("Database connection created: %s", evt.Address)
			case event.ConnectionClosed:
				logger.DebugF("Database connection closed: %s (%s)", evt.Address, evt.Reason)
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("error occured while connecting to database: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("error occured while pinging database: %w", err)
	}

	db := client.Database(config.Database)
	for _, index := range mongoIndexes {
		_, err = db.Collection(index.collection).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    index.keys,
			Options: options.Index().SetUnique(index.unique).SetName(index.name),
		})
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("error occured while creating index %s: %w", index.name, err)
		}
	}

	logger.InfoF("Connected to database %s at %s:%d", config.Database, config.Host, config.Port)
	return &MongoStore{client: client, db: db, operationTimeout: operationTimeout}, nil
}
