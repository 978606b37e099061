package cache

import (
  "context"
  "sync"

  "github.com/google/uuid"

  "github.com/conservaproj/conserva-backend/internal/types"
)

// ProjectCache is an explicit, injected snapshot cache keyed by project id.
// It replaces any ambient shared store: every consumer receives the cache
// through its constructor and nothing reads it through a package global.
// Snapshots are best-effort; the database stays the source of truth and
// writers invalidate or re-prime after each persist.
type ProjectCache interface {
  Get(ctx context.Context, projectID uuid.UUID) (*types.Project, bool)
  Set(ctx context.Context, project *types.Project)
  // Merge applies an in-place edit to the cached snapshot, when present.
  Merge(ctx context.Context, projectID uuid.UUID, apply func(*types.Project))
  Invalidate(ctx context.Context, projectID uuid.UUID)
}

// memoryCache is the fallback used when no Redis address is configured, and
// the implementation service tests run against.
type memoryCache struct {
  mu        sync.RWMutex
  snapshots map[uuid.UUID]*types.Project
}

func NewMemoryProjectCache() ProjectCache {
  return &memoryCache{snapshots: map[uuid.UUID]*types.Project{}}
}

func (m *memoryCache) Get(ctx context.Context, projectID uuid.UUID) (*types.Project, bool) {
  m.mu.RLock()
  defer m.mu.RUnlock()
  p, ok := m.snapshots[projectID]
  if !ok {
    return nil, false
  }
  snapshot := *p
  return &snapshot, true
}

func (m *memoryCache) Set(ctx context.Context, project *types.Project) {
  if project == nil {
    return
  }
  m.mu.Lock()
  defer m.mu.Unlock()
  snapshot := *project
  m.snapshots[project.ID] = &snapshot
}

func (m *memoryCache) Merge(ctx context.Context, projectID uuid.UUID, apply func(*types.Project)) {
  if apply == nil {
    return
  }
  m.mu.Lock()
  defer m.mu.Unlock()
  if p, ok := m.snapshots[projectID]; ok {
    apply(p)
  }
}

func (m *memoryCache) Invalidate(ctx context.Context, projectID uuid.UUID) {
  m.mu.Lock()
  defer m.mu.Unlock()
  delete(m.snapshots, projectID)
}
