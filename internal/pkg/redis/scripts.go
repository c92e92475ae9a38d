package redis

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrNotInitialized = errors.New("redis: client not initialized")

// IsNil 判断是否是 Key 不存在 (脚本返回 nil 同样适用)
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Script 是预编译的 Lua 脚本，首次 EVALSHA 未命中时自动回退 EVAL
type Script = redis.Script

// NewScript 创建 Lua 脚本
func NewScript(src string) *Script {
	return redis.NewScript(src)
}

// RunScript 执行 Lua 脚本
func (c *Client) RunScript(ctx context.Context, script *Script, keys []string, args ...interface{}) *redis.Cmd {
	cmd := script.Run(ctx, c.rdb, keys, args...)
	if err := cmd.Err(); err != nil && !IsNil(err) {
		c.logger.Error("redis script failed",
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
	return cmd
}

// Del 删除键
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		c.logger.Error("redis del failed",
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
	return n, err
}

// ScanKeys 遍历匹配的键，fn 返回错误时停止.
// 集群模式下逐个 master 扫描, fn 不会被并发调用
func (c *Client) ScanKeys(ctx context.Context, match string, count int64, fn func(keys []string) error) error {
	cluster, ok := c.rdb.(*redis.ClusterClient)
	if !ok {
		return c.scanNode(ctx, c.rdb, match, count, fn)
	}

	var mu sync.Mutex
	return cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		return c.scanNode(ctx, node, match, count, func(keys []string) error {
			mu.Lock()
			defer mu.Unlock()
			return fn(keys)
		})
	})
}

func (c *Client) scanNode(ctx context.Context, node redis.Cmdable, match string, count int64, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := node.Scan(ctx, cursor, match, count).Result()
		if err != nil {
			c.logger.Error("redis scan failed",
				zap.String("match", match),
				zap.Uint64("cursor", cursor),
				zap.Error(err),
			)
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
