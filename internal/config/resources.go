package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
)

const healthProbeTimeout = 5 * time.Second

// Resources bundles the external connections used by the server so their
// lifecycle is managed in a single place: the snippet database, the pub/sub
// backbone of the broadcast channel, and the archive bucket.
type Resources struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Object   *minio.Client
	bucket   string
}

// NewResources dials every external dependency and verifies it is reachable
// before returning.
func NewResources(ctx context.Context, cfg Config) (*Resources, error) {
	pool, err := newPostgresPool(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}

	object, err := newObjectClient(cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	res := &Resources{
		Postgres: pool,
		Redis: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
		Object: object,
		bucket: cfg.ObjectBucket,
	}

	if err := res.HealthCheck(ctx); err != nil {
		res.Close()
		return nil, err
	}
	return res, nil
}

func newPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pgCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return pool, nil
}

func newObjectClient(cfg Config) (*minio.Client, error) {
	client, err := minio.New(cfg.ObjectEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.ObjectAccessKey, cfg.ObjectSecretKey, ""),
		Secure: cfg.ObjectUseSSL,
		Region: cfg.ObjectRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create object client: %w", err)
	}
	return client, nil
}

// HealthCheck verifies that every dependency answers within a short timeout.
func (r *Resources) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	if err := r.Postgres.Ping(ctx); err != nil {
		return fmt.Errorf("postgres healthcheck failed: %w", err)
	}
	if err := r.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis healthcheck failed: %w", err)
	}
	// MinIO has no ping; stat the archive bucket instead.
	if _, err := r.Object.BucketExists(ctx, r.bucket); err != nil {
		return fmt.Errorf("object storage healthcheck failed: %w", err)
	}
	return nil
}

// Close disposes all active connections.
func (r *Resources) Close() {
	if r.Postgres != nil {
		r.Postgres.Close()
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
}
