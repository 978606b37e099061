package cache

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"
  "time"

  "github.com/google/uuid"
  goredis "github.com/redis/go-redis/v9"

  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/types"
)

type redisCache struct {
  log *logger.Logger
  rdb *goredis.Client
  ttl time.Duration
}

// NewRedisProjectCache connects to Redis and verifies it with a ping. Cache
// misses and marshal failures degrade to database reads, never to errors.
func NewRedisProjectCache(log *logger.Logger, addr string, ttl time.Duration) (ProjectCache, error) {
  if log == nil {
    return nil, fmt.Errorf("logger required")
  }
  addr = strings.TrimSpace(addr)
  if addr == "" {
    return nil, fmt.Errorf("missing redis address")
  }
  if ttl <= 0 {
    ttl = 5 * time.Minute
  }

  rdb := goredis.NewClient(&goredis.Options{
    Addr:        addr,
    DialTimeout: 5 * time.Second,
  })

  ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
  defer cancel()
  if err := rdb.Ping(ctx).Err(); err != nil {
    _ = rdb.Close()
    return nil, fmt.Errorf("redis ping: %w", err)
  }

  return &redisCache{
    log: log.With("service", "RedisProjectCache"),
    rdb: rdb,
    ttl: ttl,
  }, nil
}

func projectKey(projectID uuid.UUID) string {
  return "project:snapshot:" + projectID.String()
}

func (c *redisCache) Get(ctx context.Context, projectID uuid.UUID) (*types.Project, bool) {
  raw, err := c.rdb.Get(ctx, projectKey(projectID)).Bytes()
  if err != nil {
    if err != goredis.Nil {
      c.log.Warn("Project snapshot read failed", "error", err, "project_id", projectID)
    }
    return nil, false
  }
  var project types.Project
  if err := json.Unmarshal(raw, &project); err != nil {
    c.log.Warn("Bad project snapshot payload, dropping", "error", err, "project_id", projectID)
    _ = c.rdb.Del(ctx, projectKey(projectID)).Err()
    return nil, false
  }
  return &project, true
}

func (c *redisCache) Set(ctx context.Context, project *types.Project) {
  if project == nil {
    return
  }
  raw, err := json.Marshal(project)
  if err != nil {
    c.log.Warn("Project snapshot marshal failed", "error", err, "project_id", project.ID)
    return
  }
  if err := c.rdb.Set(ctx, projectKey(project.ID), raw, c.ttl).Err(); err != nil {
    c.log.Warn("Project snapshot write failed", "error", err, "project_id", project.ID)
  }
}

func (c *redisCache) Merge(ctx context.Context, projectID uuid.UUID, apply func(*types.Project)) {
  if apply == nil {
    return
  }
  project, ok := c.Get(ctx, projectID)
  if !ok {
    return
  }
  apply(project)
  c.Set(ctx, project)
}

func (c *redisCache) Invalidate(ctx context.Context, projectID uuid.UUID) {
  if err := c.rdb.Del(ctx, projectKey(projectID)).Err(); err != nil {
    c.log.Warn("Project snapshot invalidate failed", "error", err, "project_id", projectID)
  }
}
