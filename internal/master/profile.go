package master

import (
	"context"
	"fmt"

	"resumate/internal/database"
	"resumate/internal/errcode"
)

// Profile 是每份简历顶部的联系信息。
type Profile struct {
	ID       uint    `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Location *string `json:"location"`
	About    *string `json:"about"`
}

// ProfileInput 整体覆盖个人信息。
type ProfileInput struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Location *string `json:"location"`
	About    *string `json:"about"`
}

func profileOf(u database.User) Profile {
	return Profile{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		Phone:    u.Phone,
		Location: u.Location,
		About:    u.About,
	}
}

// GetProfile 读取个人信息。
func (s *Store) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	var user database.User
	if err := s.conn(ctx).First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("get profile %d: %w", userID, gormNotFound(err))
	}
	p := profileOf(user)
	return &p, nil
}

// UpdateProfile 覆盖可选的个人信息字段。
func (s *Store) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*Profile, error) {
	cols := map[string]any{
		"full_name": nullable(in.FullName),
		"phone":     nullable(in.Phone),
		"location":  nullable(in.Location),
		"about":     nullable(in.About),
	}
	if email := nullable(in.Email); email != nil {
		cols["email"] = *email
	}

	res := s.conn(ctx).Model(&database.User{}).Where("id = ?", userID).Updates(cols)
	if res.Error != nil {
		return nil, fmt.Errorf("update profile %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update profile %d: %w", userID, errcode.ErrNotFound)
	}
	return s.GetProfile(ctx, userID)
}
