package service

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
)

type UserService struct {
	userRepo *db.UserRepo
}

func NewUserService(userRepo *db.UserRepo) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetUser
// 錯誤:
//   - db.ErrUserNotFound: 用戶不存在
func (u *UserService) GetUser(ctx context.Context, userID int) (*model.User, error) {
	return u.userRepo.GetUserByID(ctx, userID)
}

// GetActor 將用戶轉為操作者身份 (訂單授權用)
// 錯誤:
//   - db.ErrUserNotFound: 用戶不存在
func (u *UserService) GetActor(ctx context.Context, userID int) (model.Actor, error) {
	user, err := u.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return model.Actor{}, err
	}
	return model.Actor{UserID: user.UserID, IsAdmin: user.IsAdmin}, nil
}
