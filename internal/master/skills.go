package master

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"resumate/internal/database"
	"resumate/internal/errcode"
)

// 可接受的技能等级，nil 表示未指定。
var skillLevels = map[string]struct{}{
	"beginner":     {},
	"intermediate": {},
	"advanced":     {},
	"expert":       {},
}

// SkillInput 是技能的完整可编辑字段。更新时整体覆盖，
// 未提供的字段会被清空。
type SkillInput struct {
	Name        string  `json:"name"`
	Category    *string `json:"category"`
	Level       *string `json:"level"`
	SourcePdfID *uint   `json:"source_pdf_id"`
}

func (in SkillInput) normalize() (SkillInput, error) {
	out := SkillInput{
		Name:        strings.TrimSpace(in.Name),
		Category:    nullable(in.Category),
		Level:       nullable(in.Level),
		SourcePdfID: in.SourcePdfID,
	}
	if out.Name == "" {
		return out, errcode.Required("name")
	}
	if out.Level != nil {
		level := strings.ToLower(*out.Level)
		if _, ok := skillLevels[level]; !ok {
			return out, errcode.Invalid("level", "must be one of beginner, intermediate, advanced, expert")
		}
		out.Level = &level
	}
	return out, nil
}

// ListSkills 按分类排序、未分类的在后，再按名称。
func (s *Store) ListSkills(ctx context.Context, userID uint) ([]database.Skill, error) {
	var skills []database.Skill
	if err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("CASE WHEN category IS NULL THEN 1 ELSE 0 END, category ASC, name ASC").
		Find(&skills).Error; err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	return skills, nil
}

// GetSkill 返回 userID 名下的技能。
func (s *Store) GetSkill(ctx context.Context, id, userID uint) (*database.Skill, error) {
	var skill database.Skill
	if err := first(s.conn(ctx), &skill, id, userID); err != nil {
		return nil, fmt.Errorf("get skill %d: %w", id, err)
	}
	return &skill, nil
}

// CreateSkill 校验后插入技能。
func (s *Store) CreateSkill(ctx context.Context, userID uint, in SkillInput) (*database.Skill, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	if err := s.checkSourceDocument(ctx, userID, in.SourcePdfID); err != nil {
		return nil, err
	}

	skill := database.Skill{
		UserID:      userID,
		Name:        in.Name,
		Category:    in.Category,
		Level:       in.Level,
		SourcePdfID: in.SourcePdfID,
	}
	if err := s.conn(ctx).Create(&skill).Error; err != nil {
		return nil, fmt.Errorf("create skill: %w", err)
	}
	return &skill, nil
}

// UpdateSkill 覆盖技能的全部可编辑列。
func (s *Store) UpdateSkill(ctx context.Context, id, userID uint, in SkillInput) (*database.Skill, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	if err := s.checkSourceDocument(ctx, userID, in.SourcePdfID); err != nil {
		return nil, err
	}

	res := s.conn(ctx).Model(&database.Skill{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"name":          in.Name,
			"category":      in.Category,
			"level":         in.Level,
			"source_pdf_id": in.SourcePdfID,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update skill %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update skill %d: %w", id, errcode.ErrNotFound)
	}
	return s.GetSkill(ctx, id, userID)
}

// DeleteSkill 删除 userID 名下的技能。
func (s *Store) DeleteSkill(ctx context.Context, id, userID uint) error {
	res := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&database.Skill{})
	if res.Error != nil {
		return fmt.Errorf("delete skill %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete skill %d: %w", id, errcode.ErrNotFound)
	}
	return nil
}

func (s *Store) checkSourceDocument(ctx context.Context, userID uint, id *uint) error {
	if id == nil {
		return nil
	}
	var doc database.SourceDocument
	err := first(s.conn(ctx).Select("id"), &doc, *id, userID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errcode.ErrNotFound):
		return errcode.Invalid("source_pdf_id", "unknown source document")
	default:
		return fmt.Errorf("check source document %d: %w", *id, err)
	}
}
