package repo

import (
	"context"
	"engage/entity"
	"engage/pkg/goutil"
)

const userCachePrefix = "user"

// User is the storefront's user directory row. Only the columns needed for delivery are mapped.
type User struct {
	ID          *uint64 `json:"id,omitempty"`
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Status      *uint32 `json:"status,omitempty"`
}

func (m *User) TableName() string {
	return "user_tab"
}

func (m *User) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

func (m *User) GetStatus() uint32 {
	if m != nil && m.Status != nil {
		return *m.Status
	}
	return 0
}

type UserRepo interface {
	// GetAll returns every user that can receive notifications.
	GetAll(ctx context.Context) ([]*entity.User, error)
	// GetManyByIDs resolves ids in one query. Unknown ids are left out.
	GetManyByIDs(ctx context.Context, userIDs []uint64) ([]*entity.User, error)
}

type userRepo struct {
	baseRepo  BaseRepo
	baseCache BaseCache
}

func NewUserRepo(_ context.Context, baseRepo BaseRepo, baseCache BaseCache) UserRepo {
	return &userRepo{
		baseRepo:  baseRepo,
		baseCache: baseCache,
	}
}

func (r *userRepo) GetAll(ctx context.Context) ([]*entity.User, error) {
	mUsers := make([]*User, 0)

	if err := r.baseRepo.Find(ctx, new(User), &mUsers, &Filter{
		Conditions: r.getActiveConditions(),
		Order:      "id ASC",
	}); err != nil {
		return nil, err
	}

	users := make([]*entity.User, len(mUsers))
	for i, mUser := range mUsers {
		users[i] = ToUser(mUser)
		r.baseCache.Set(ctx, userCachePrefix, users[i].GetID(), users[i])
	}

	return users, nil
}

func (r *userRepo) GetManyByIDs(ctx context.Context, userIDs []uint64) ([]*entity.User, error) {
	userIDs = goutil.UniqUint64(userIDs)

	var (
		found  = make(map[uint64]*entity.User, len(userIDs))
		misses = make([]uint64, 0)
	)
	for _, userID := range userIDs {
		if v, ok := r.baseCache.Get(ctx, userCachePrefix, userID); ok {
			found[userID] = v.(*entity.User)
			continue
		}
		misses = append(misses, userID)
	}

	if len(misses) > 0 {
		mUsers := make([]*User, 0)
		if err := r.baseRepo.Find(ctx, new(User), &mUsers, &Filter{
			Conditions: append(r.getActiveConditions(), &Condition{
				Field: "id",
				Op:    OpIn,
				Value: misses,
			}),
		}); err != nil {
			return nil, err
		}

		for _, mUser := range mUsers {
			user := ToUser(mUser)
			found[user.GetID()] = user
			r.baseCache.Set(ctx, userCachePrefix, user.GetID(), user)
		}
	}

	users := make([]*entity.User, 0, len(found))
	for _, userID := range userIDs {
		if user, ok := found[userID]; ok {
			users = append(users, user)
		}
	}

	return users, nil
}

func (r *userRepo) getActiveConditions() []*Condition {
	return []*Condition{
		{
			Field:         "status",
			Op:            OpNotEq,
			Value:         uint32(entity.UserStatusDeleted),
			NextLogicalOp: LogicalOpAnd,
		},
	}
}

func ToUser(user *User) *entity.User {
	return &entity.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Status:      entity.UserStatus(user.GetStatus()),
	}
}
