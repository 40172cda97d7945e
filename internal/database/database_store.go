package database

import (
	"context"
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"time"
)

type MongoStore struct {
	client           *mongo.Client
	db               *mongo.Database
	operationTimeout time.Duration
}

// 用户名和角色名大小写不敏感
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("unique key conflicts: %w", err)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("database operation failed: %w", err)
}

func (ds *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, ds.operationTimeout)
}

func (ds *MongoStore) LoadVariable(ctx context.Context, name string) (int64, error) {
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	var variable SavedVariable
	err := ds.db.Collection(SavedVariableCollectionName).FindOne(ctx, bson.D{{Key: "name", Value: name}}).Decode(&variable)
	if err != nil {
		return 0, wrapError(err)
	}
	return variable.Value, nil
}

func (ds *MongoStore) SaveVariable(ctx context.Context, name string, value int64) error {
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	filter := bson.D{{Key: "name", Value: name}}
	opts := options.Replace().SetUpsert(true)
	_, err := ds.db.Collection(SavedVariableCollectionName).ReplaceOne(ctx, filter, SavedVariable{Name: name, Value: value}, opts)
	return wrapError(err)
}

func (ds *MongoStore) FindAccount(ctx context.Context, username string) (account.Account, error) {
	if username == "" {
		return account.Account{}, ErrEmptyUsername
	}
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	var result account.Account
	startTime := time.Now()
	err := ds.db.Collection(AccountCollectionName).
		FindOne(ctx, bson.D{{Key: "username", Value: username}}, options.FindOne().SetCollation(caseInsensitive)).
		Decode(&result)
	logger.DebugF("account query cost: %v", time.Since(startTime))
	if err != nil {
		return account.Account{}, wrapError(err)
	}
	return result, nil
}

func (ds *MongoStore) SaveAccount(ctx context.Context, a account.Account) error {
	if a.Username == "" {
		return ErrEmptyUsername
	}
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	filter := bson.D{{Key: "account_id", Value: a.ID}}
	result, err := ds.db.Collection(AccountCollectionName).ReplaceOne(ctx, filter, a, options.Replace().SetUpsert(true))
	if err != nil {
		return wrapError(err)
	}
	logger.DebugF("Account saved: account_id=%d, matched=%d, modified=%d, upserted=%v",
		a.ID, result.MatchedCount, result.ModifiedCount, result.UpsertedID != nil)
	return nil
}

// activeFilter 未解除且未过期的封禁
func activeFilter(now time.Time) bson.D {
	return bson.D{
		{Key: "active", Value: true},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "end", Value: time.Time{}}},
			bson.D{{Key: "end", Value: bson.D{{Key: "$gt", Value: now}}}},
		}},
	}
}

func (ds *MongoStore) IsBanned(ctx context.Context, accountID uint32, ip string, now time.Time) (bool, error) {
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	filter := append(bson.D{{Key: "account_id", Value: accountID}}, activeFilter(now)...)
	count, err := ds.db.Collection(AccountBanCollectionName).CountDocuments(ctx, filter)
	if err != nil {
		return false, wrapError(err)
	}
	if count > 0 || ip == "" {
		return count > 0, nil
	}

	filter = append(bson.D{{Key: "target", Value: ip}}, activeFilter(now)...)
	count, err = ds.db.Collection(IPBanCollectionName).CountDocuments(ctx, filter)
	if err != nil {
		return false, wrapError(err)
	}
	return count > 0, nil
}

func (ds *MongoStore) accountsFor(ctx context.Context, mode account.BanMode, target string) ([]uint32, error) {
	var filter bson.D
	switch mode {
	case account.BanIP:
		filter = bson.D{{Key: "last_ip", Value: target}}
	case account.BanAccount:
		filter = bson.D{{Key: "username", Value: target}}
	case account.BanCharacter:
		filter = bson.D{{Key: "characters", Value: target}}
	default:
		return nil, fmt.Errorf("unsupported ban mode %d", mode)
	}

	opts := options.Find().SetCollation(caseInsensitive).SetProjection(bson.D{{Key: "account_id", Value: 1}}).SetSort(bson.D{{Key: "account_id", Value: 1}})
	cursor, err := ds.db.Collection(AccountCollectionName).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapError(err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var ids []uint32
	for cursor.Next(ctx) {
		var row struct {
			ID uint32 `bson:"account_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, wrapError(err)
		}
		ids = append(ids, row.ID)
	}
	return ids, wrapError(cursor.Err())
}

func (ds *MongoStore) Ban(ctx context.Context, ban account.Ban) ([]uint32, error) {
	if ban.Target == "" {
		return nil, ErrEmptyTarget
	}
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	ids, err := ds.accountsFor(ctx, ban.Mode, ban.Target)
	if err != nil {
		return nil, err
	}
	ban.Active = true

	if ban.Mode == account.BanIP {
		filter := bson.D{{Key: "target", Value: ban.Target}}
		_, err = ds.db.Collection(IPBanCollectionName).ReplaceOne(ctx, filter, ban, options.Replace().SetUpsert(true))
		return ids, wrapError(err)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%s %s: %w", ban.Mode, ban.Target, ErrNotFound)
	}
	documents := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		entry := ban
		entry.AccountID = id
		documents = append(documents, entry)
	}
	if _, err = ds.db.Collection(AccountBanCollectionName).InsertMany(ctx, documents); err != nil {
		return nil, wrapError(err)
	}
	return ids, nil
}

func (ds *MongoStore) Unban(ctx context.Context, mode account.BanMode, target string) (bool, error) {
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	if mode == account.BanIP {
		result, err := ds.db.Collection(IPBanCollectionName).DeleteOne(ctx, bson.D{{Key: "target", Value: target}})
		if err != nil {
			return false, wrapError(err)
		}
		return result.DeletedCount > 0, nil
	}

	ids, err := ds.accountsFor(ctx, mode, target)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}
	filter := bson.D{{Key: "account_id", Value: bson.D{{Key: "$in", Value: ids}}}, {Key: "active", Value: true}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: false}}}}
	if _, err = ds.db.Collection(AccountBanCollectionName).UpdateMany(ctx, filter, update); err != nil {
		return false, wrapError(err)
	}
	return true, nil
}

func (ds *MongoStore) StartUptime(ctx context.Context, realmID uint32, start time.Time) error {
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	_, err := ds.db.Collection(UptimeCollectionName).InsertOne(ctx, UptimeRecord{RealmID: realmID, StartTime: start})
	return wrapError(err)
}

func (ds *MongoStore) UpdateUptime(ctx context.Context, realmID uint32, start time.Time, uptime time.Duration, maxPlayers int) error {
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	filter := bson.D{{Key: "realm_id", Value: realmID}, {Key: "start_time", Value: start}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "uptime", Value: int64(uptime / time.Second)},
		{Key: "max_players", Value: maxPlayers},
	}}}
	result, err := ds.db.Collection(UptimeCollectionName).UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapError(err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("uptime of realm %d: %w", realmID, ErrNotFound)
	}
	return nil
}

func (ds *MongoStore) UpdatePopulation(ctx context.Context, realmID uint32, population float64) error {
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	filter := bson.D{{Key: "realm_id", Value: realmID}}
	_, err := ds.db.Collection(RealmCollectionName).ReplaceOne(ctx, filter, RealmRecord{RealmID: realmID, Population: population}, options.Replace().SetUpsert(true))
	return wrapError(err)
}

func (ds *MongoStore) AppendLog(ctx context.Context, at time.Time, text string) error {
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	_, err := ds.db.Collection(LogCollectionName).InsertOne(ctx, LogRecord{At: at, Text: text})
	return wrapError(err)
}

func (ds *MongoStore) PurgeLogs(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := ds.withTimeout(ctx)
	defer cancel()

	result, err := ds.db.Collection(LogCollectionName).DeleteMany(ctx, bson.D{{Key: "at", Value: bson.D{{Key: "$lt", Value: before}}}})
	if err != nil {
		return 0, wrapError(err)
	}
	return result.DeletedCount, nil
}

func (ds *MongoStore) Close(ctx context.Context) error {
	logger.InfoF("Closing database connection")
	return ds.client.Disconnect(ctx)
}
