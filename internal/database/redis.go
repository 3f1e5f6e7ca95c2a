package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kebairia/redis-backup/internal/config"
	"github.com/kebairia/redis-backup/internal/logger"
)

const EngineRedis = "redis"

// RedisOption lets you override default settings on a Redis.
type RedisOption func(*Redis)

// Redis is a Store backed by a single Redis server.
type Redis struct {
	Host        string
	Port        int
	Username    string
	Password    string
	DialTimeout time.Duration
	Logger      logger.Logger

	client *redis.Client
}

var _ Store = (*Redis)(nil)

// NewRedis returns a Redis configured from cfg plus any overrides.
// No connection is made until Connect is called.
func NewRedis(cfg config.Config, opts ...RedisOption) *Redis {
	r := &Redis{
		Host:        cfg.Redis.Host,
		Port:        cfg.Redis.Port,
		Username:    cfg.Redis.Username,
		Password:    cfg.Redis.Password,
		DialTimeout: cfg.Redis.DialTimeout,
		Logger:      logger.Global(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithRedisHost overrides the host.
func WithRedisHost(host string) RedisOption {
	return func(r *Redis) {
		if host != "" {
			r.Host = host
		}
	}
}

// WithRedisPort overrides the port.
func WithRedisPort(port int) RedisOption {
	return func(r *Redis) {
		if port > 0 {
			r.Port = port
		}
	}
}

// WithRedisCredentials sets the ACL username and password.
func WithRedisCredentials(user, pass string) RedisOption {
	return func(r *Redis) {
		if user != "" {
			r.Username = user
		}
		if pass != "" {
			r.Password = pass
		}
	}
}

// WithRedisLogger overrides the logger.
func WithRedisLogger(log logger.Logger) RedisOption {
	return func(r *Redis) {
		if log != nil {
			r.Logger = log
		}
	}
}

// Addr returns host:port.
func (r *Redis) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Connect opens the client and verifies the server answers PING.
func (r *Redis) Connect(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:        r.Addr(),
		Username:    r.Username,
		Password:    r.Password,
		DialTimeout: r.DialTimeout,
		// One sequential run; a single connection is enough.
		PoolSize:   1,
		MaxRetries: -1,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("%w: ping %s: %w", ErrConnection, r.Addr(), err)
	}
	r.client = client
	r.Logger.Info("connected to redis server", "addr", r.Addr())
	return nil
}

// TriggerSnapshot issues BGSAVE. A server error reply (e.g. a save already
// in progress) is a rejection, anything else is a connection failure.
func (r *Redis) TriggerSnapshot(ctx context.Context) (bool, error) {
	reply, err := r.client.BgSave(ctx).Result()
	if err != nil {
		if isServerReply(err) {
			r.Logger.Warn("bgsave rejected", "addr", r.Addr(), "reply", err.Error())
			return false, nil
		}
		return false, fmt.Errorf("%w: bgsave: %w", ErrConnection, err)
	}
	r.Logger.Debug("bgsave accepted", "reply", reply)
	return true, nil
}

// LastSnapshotCompletionTime issues LASTSAVE.
func (r *Redis) LastSnapshotCompletionTime(ctx context.Context) (time.Time, error) {
	ts, err := r.client.LastSave(ctx).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: lastsave: %w", ErrConnection, err)
	}
	return time.Unix(ts, 0), nil
}

// GetConfig issues CONFIG GET key.
func (r *Redis) GetConfig(ctx context.Context, key string) (string, bool, error) {
	values, err := r.client.ConfigGet(ctx, key).Result()
	if err != nil {
		if isServerReply(err) {
			// CONFIG may be renamed or forbidden by ACL.
			return "", false, fmt.Errorf("config get %s: %w", key, err)
		}
		return "", false, fmt.Errorf("%w: config get %s: %w", ErrConnection, key, err)
	}
	value, ok := values[key]
	return value, ok, nil
}

func (r *Redis) GetName() string {
	return r.Addr()
}

// Close releases the connection. Safe to call on an unconnected Redis.
func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

func isServerReply(err error) bool {
	var reply redis.Error
	return errors.As(err, &reply)
}
