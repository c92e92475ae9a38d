package data

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/conf"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/models"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/database"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/redis"
)

// Data holds the shared infrastructure clients. DB and Redis are nil when no
// configured component needs them.
type Data struct {
	DB     *database.DB
	Redis  *redis.Client
	Logger *logger.Logger
}

func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	d := &Data{Logger: log}

	if config.NeedsDatabase() {
		db, err := database.New(&config.Database, log.Named("database"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init database: %w", err)
		}
		if err := db.Migrate(context.Background(), models.Migrations()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		d.DB = db
	}

	if config.NeedsRedis() {
		client, err := redis.New(&config.Redis, log.Named("redis"))
		if err != nil {
			if d.DB != nil {
				d.DB.Close()
			}
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		d.Redis = client
	}

	cleanup := func() {
		log.Info("cleaning up data resources")

		if d.DB != nil {
			if err := d.DB.Close(); err != nil {
				log.Warn("failed to close database", zap.Error(err))
			}
		}
		if d.Redis != nil {
			if err := d.Redis.Close(); err != nil {
				log.Warn("failed to close redis", zap.Error(err))
			}
		}
	}

	return d, cleanup, nil
}

// HealthCheck pings every configured backend. The map holds "ok" or the error text.
func (d *Data) HealthCheck(ctx context.Context) (map[string]string, bool) {
	status := make(map[string]string)
	healthy := true

	if d.DB != nil {
		status["database"] = "ok"
		if err := d.DB.HealthCheck(ctx); err != nil {
			status["database"] = err.Error()
			healthy = false
		}
	}
	if d.Redis != nil {
		status["redis"] = "ok"
		if err := d.Redis.Ping(ctx); err != nil {
			status["redis"] = err.Error()
			healthy = false
		}
	}
	return status, healthy
}
