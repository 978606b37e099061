package services

import (
  "context"
  "fmt"
  "strings"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/repos"
  "github.com/conservaproj/conserva-backend/internal/requestdata"
  "github.com/conservaproj/conserva-backend/internal/types"
)

type UserService interface {
  GetMe(ctx context.Context, tx *gorm.DB) (*types.User, error)
  UpdateProfile(ctx context.Context, tx *gorm.DB, firstName, lastName string) (*types.User, error)
}

type userService struct {
  db       *gorm.DB
  log      *logger.Logger
  userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo) UserService {
  return &userService{
    db:       db,
    log:      baseLog.With("service", "UserService"),
    userRepo: userRepo,
  }
}

func (us *userService) GetMe(ctx context.Context, tx *gorm.DB) (*types.User, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return nil, fmt.Errorf("Request data not set in context")
  }
  transaction := tx
  if transaction == nil {
    transaction = us.db
  }
  users, err := us.userRepo.GetByIDs(ctx, transaction, []uuid.UUID{rd.UserID})
  if err != nil {
    us.log.Error("GetMe failed", "error", err, "user_id", rd.UserID)
    return nil, fmt.Errorf("get user: %w", err)
  }
  if len(users) == 0 {
    return nil, fmt.Errorf("user not found")
  }
  return users[0], nil
}

func (us *userService) UpdateProfile(ctx context.Context, tx *gorm.DB, firstName, lastName string) (*types.User, error) {
  user, err := us.GetMe(ctx, tx)
  if err != nil {
    return nil, err
  }
  if v := strings.TrimSpace(firstName); v != "" {
    user.FirstName = v
  }
  if v := strings.TrimSpace(lastName); v != "" {
    user.LastName = v
  }
  if err := us.userRepo.Update(ctx, tx, user); err != nil {
    us.log.Error("UpdateProfile failed", "error", err, "user_id", user.ID)
    return nil, fmt.Errorf("update profile: %w", err)
  }
  return user, nil
}
