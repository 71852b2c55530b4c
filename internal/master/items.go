package master

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"resumate/internal/database"
	"resumate/internal/errcode"
)

// ResumeItemInput 是创建条目的输入。
type ResumeItemInput struct {
	ItemType       string   `json:"item_type"`
	Title          string   `json:"title"`
	Organization   *string  `json:"organization"`
	Description    *string  `json:"description"`
	Location       *string  `json:"location"`
	EmploymentType *string  `json:"employment_type"`
	Technologies   []string `json:"technologies"`
	GithubURL      *string  `json:"github_url"`
	DemoURL        *string  `json:"demo_url"`
	StartDate      *string  `json:"start_date"`
	EndDate        *string  `json:"end_date"`
	IsCurrent      bool     `json:"is_current"`
}

// ResumeItemPatch 只更新请求体中出现的键。
type ResumeItemPatch struct {
	ItemType       Field[string]   `json:"item_type"`
	Title          Field[string]   `json:"title"`
	Organization   Field[string]   `json:"organization"`
	Description    Field[string]   `json:"description"`
	Location       Field[string]   `json:"location"`
	EmploymentType Field[string]   `json:"employment_type"`
	Technologies   Field[[]string] `json:"technologies"`
	GithubURL      Field[string]   `json:"github_url"`
	DemoURL        Field[string]   `json:"demo_url"`
	StartDate      Field[string]   `json:"start_date"`
	EndDate        Field[string]   `json:"end_date"`
	IsCurrent      Field[bool]     `json:"is_current"`
}

func validItemType(t string) (string, error) {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case database.ItemTypeExperience, database.ItemTypeProject, database.ItemTypeAchievement:
		return t, nil
	case "":
		return "", errcode.Required("item_type")
	default:
		return "", errcode.Invalid("item_type", "must be one of experience, project, achievement")
	}
}

func cleanTechnologies(in []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// columns 把出现的键映射为列值。
func (p ResumeItemPatch) columns() (map[string]any, error) {
	cols := map[string]any{}

	if p.ItemType.Set {
		if p.ItemType.Null {
			return nil, errcode.Required("item_type")
		}
		t, err := validItemType(p.ItemType.Value)
		if err != nil {
			return nil, err
		}
		cols["item_type"] = t
	}
	if p.Title.Set {
		title := stringValue(p.Title)
		if title == nil {
			return nil, errcode.Required("title")
		}
		cols["title"] = *title
	}

	optional := []struct {
		column string
		field  Field[string]
	}{
		{"organization", p.Organization},
		{"description", p.Description},
		{"location", p.Location},
		{"employment_type", p.EmploymentType},
		{"github_url", p.GithubURL},
		{"demo_url", p.DemoURL},
	}
	for _, o := range optional {
		if o.field.Set {
			cols[o.column] = stringValue(o.field)
		}
	}

	for column, f := range map[string]Field[string]{"start_date": p.StartDate, "end_date": p.EndDate} {
		if !f.Set {
			continue
		}
		d, err := parseDate(column, stringValue(f))
		if err != nil {
			return nil, err
		}
		cols[column] = d
	}

	if p.Technologies.Set {
		cols["technologies"] = cleanTechnologies(p.Technologies.Value)
	}
	if p.IsCurrent.Set {
		cols["is_current"] = !p.IsCurrent.Null && p.IsCurrent.Value
	}
	return cols, nil
}

// ListItems 按开始日期倒序、无日期的在后，再按创建时间排序。itemType 为空时列出全部类别。
func (s *Store) ListItems(ctx context.Context, userID uint, itemType string) ([]database.ResumeItem, error) {
	q := s.conn(ctx).Where("user_id = ?", userID)
	if itemType != "" {
		t, err := validItemType(itemType)
		if err != nil {
			return nil, err
		}
		q = q.Where("item_type = ?", t)
	}

	var items []database.ResumeItem
	if err := q.
		Order("CASE WHEN start_date IS NULL THEN 1 ELSE 0 END, start_date DESC, created_at DESC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list resume items: %w", err)
	}
	return items, nil
}

// GetItem 返回 userID 名下的条目及其要点。
func (s *Store) GetItem(ctx context.Context, id, userID uint) (*database.ResumeItem, error) {
	var item database.ResumeItem
	if err := first(s.conn(ctx), &item, id, userID); err != nil {
		return nil, fmt.Errorf("get resume item %d: %w", id, err)
	}
	points, err := s.listPoints(s.conn(ctx), item.ID)
	if err != nil {
		return nil, err
	}
	item.Points = points
	return &item, nil
}

// CreateItem 校验后插入条目。
func (s *Store) CreateItem(ctx context.Context, userID uint, in ResumeItemInput) (*database.ResumeItem, error) {
	itemType, err := validItemType(in.ItemType)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errcode.Required("title")
	}
	start, err := parseDate("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}

	item := database.ResumeItem{
		UserID:         userID,
		ItemType:       itemType,
		Title:          title,
		Organization:   nullable(in.Organization),
		Description:    nullable(in.Description),
		Location:       nullable(in.Location),
		EmploymentType: nullable(in.EmploymentType),
		Technologies:   cleanTechnologies(in.Technologies),
		GithubURL:      nullable(in.GithubURL),
		DemoURL:        nullable(in.DemoURL),
		StartDate:      start,
		EndDate:        end,
		IsCurrent:      in.IsCurrent,
	}
	if err := s.conn(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("create resume item: %w", err)
	}
	return &item, nil
}

// UpdateItem 只写入出现的字段，其余保持不变。
func (s *Store) UpdateItem(ctx context.Context, id, userID uint, patch ResumeItemPatch) (*database.ResumeItem, error) {
	cols, err := patch.columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errcode.Invalid("", "no fields to update")
	}

	res := s.conn(ctx).Model(&database.ResumeItem{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(cols)
	if res.Error != nil {
		return nil, fmt.Errorf("update resume item %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update resume item %d: %w", id, errcode.ErrNotFound)
	}
	return s.GetItem(ctx, id, userID)
}

// DeleteItem 删除条目及其要点。引用它的定制简历条目一并删除，
// 定制要点指向它的要点的链接被清空。
func (s *Store) DeleteItem(ctx context.Context, id, userID uint) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var item database.ResumeItem
		if err := first(tx.Select("id"), &item, id, userID); err != nil {
			return err
		}

		junctions := tx.Model(&database.CuratedResumeItemJunction{}).Select("id").Where("resume_item_id = ?", id)
		if err := tx.Where("curated_resume_item_junction_id IN (?)", junctions).
			Delete(&database.CuratedResumeItemPoint{}).Error; err != nil {
			return fmt.Errorf("delete curated points: %w", err)
		}
		if err := tx.Where("resume_item_id = ?", id).
			Delete(&database.CuratedResumeItemJunction{}).Error; err != nil {
			return fmt.Errorf("delete curated junctions: %w", err)
		}

		points := tx.Model(&database.ResumeItemPoint{}).Select("id").Where("resume_item_id = ?", id)
		if err := tx.Model(&database.CuratedResumeItemPoint{}).
			Where("original_point_id IN (?)", points).
			Update("original_point_id", nil).Error; err != nil {
			return fmt.Errorf("unlink curated points: %w", err)
		}
		if err := tx.Where("resume_item_id = ?", id).Delete(&database.ResumeItemPoint{}).Error; err != nil {
			return fmt.Errorf("delete points: %w", err)
		}
		if err := tx.Delete(&database.ResumeItem{}, id).Error; err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete resume item %d: %w", id, err)
	}
	return nil
}
