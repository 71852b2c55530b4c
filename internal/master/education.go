package master

import (
	"context"
	"fmt"
	"strings"

	"resumate/internal/database"
	"resumate/internal/errcode"
)

// EducationInput 是完整的可编辑字段，更新时整体覆盖。
type EducationInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Grade       *string `json:"grade"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

func (in EducationInput) normalize() (database.EducationEntry, error) {
	var entry database.EducationEntry
	entry.Title = strings.TrimSpace(in.Title)
	if entry.Title == "" {
		return entry, errcode.Required("title")
	}
	var err error
	if entry.StartDate, err = parseDate("start_date", in.StartDate); err != nil {
		return entry, err
	}
	if entry.EndDate, err = parseDate("end_date", in.EndDate); err != nil {
		return entry, err
	}
	entry.Description = nullable(in.Description)
	entry.Grade = nullable(in.Grade)
	return entry, nil
}

// ListEducation 按开始日期倒序，无日期的排在最后。
func (s *Store) ListEducation(ctx context.Context, userID uint) ([]database.EducationEntry, error) {
	var entries []database.EducationEntry
	if err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("CASE WHEN start_date IS NULL THEN 1 ELSE 0 END, start_date DESC, created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list education: %w", err)
	}
	return entries, nil
}

// GetEducation 返回 userID 名下的一条教育经历。
func (s *Store) GetEducation(ctx context.Context, id, userID uint) (*database.EducationEntry, error) {
	var entry database.EducationEntry
	if err := first(s.conn(ctx), &entry, id, userID); err != nil {
		return nil, fmt.Errorf("get education %d: %w", id, err)
	}
	return &entry, nil
}

// CreateEducation 校验后插入。
func (s *Store) CreateEducation(ctx context.Context, userID uint, in EducationInput) (*database.EducationEntry, error) {
	entry, err := in.normalize()
	if err != nil {
		return nil, err
	}
	entry.UserID = userID

	if err := s.conn(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("create education: %w", err)
	}
	return &entry, nil
}

// UpdateEducation 覆盖全部可编辑列。
func (s *Store) UpdateEducation(ctx context.Context, id, userID uint, in EducationInput) (*database.EducationEntry, error) {
	entry, err := in.normalize()
	if err != nil {
		return nil, err
	}
	res := s.conn(ctx).Model(&database.EducationEntry{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"title":       entry.Title,
			"description": entry.Description,
			"grade":       entry.Grade,
			"start_date":  entry.StartDate,
			"end_date":    entry.EndDate,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update education %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update education %d: %w", id, errcode.ErrNotFound)
	}
	return s.GetEducation(ctx, id, userID)
}

// DeleteEducation 删除 userID 名下的一条教育经历。
func (s *Store) DeleteEducation(ctx context.Context, id, userID uint) error {
	res := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&database.EducationEntry{})
	if res.Error != nil {
		return fmt.Errorf("delete education %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete education %d: %w", id, errcode.ErrNotFound)
	}
	return nil
}
