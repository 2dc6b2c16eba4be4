package redis_client

import (
	"context"
	"strconv"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/bikeraccoon/bikeraccoon/pkg/util"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultDatabase = 0

// Connect sets up the shared Redis client and queue connection. Redis is optional, without
// BIKERACCOON_REDIS_ADDRESS nothing is connected and Client stays nil.
func Connect() error {
	env := util.GetEnvironmentVariables()

	address := env["BIKERACCOON_REDIS_ADDRESS"]
	if address == "" {
		log.Info().Msg("Skipping Redis setup")
		return nil
	}

	database := defaultDatabase
	if env["BIKERACCOON_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["BIKERACCOON_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return err
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: env["BIKERACCOON_REDIS_PASSWORD"],
		DB:       database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return err
	}

	queueConnection, err := rmq.OpenConnectionWithRedisClient("bikeraccoon", client, nil)
	if err != nil {
		return err
	}

	Client = client
	QueueConnection = queueConnection

	log.Info().Str("address", address).Int("database", database).Msg("Redis client setup")

	return nil
}

func Enabled() bool {
	return Client != nil
}

// NewCache returns a Redis backed string cache, or nil when Redis is not configured
func NewCache(expiration time.Duration) *cache.Cache[string] {
	if Client == nil {
		return nil
	}

	redisStore := redisstore.NewRedis(Client, store.WithExpiration(expiration))

	return cache.New[string](redisStore)
}
