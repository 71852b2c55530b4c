package master

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"resumate/internal/database"
	"resumate/internal/errcode"
)

// Resume 是用户完整的主简历。
type Resume struct {
	Profile      Profile                   `json:"profile"`
	Skills       []database.Skill          `json:"skills"`
	Education    []database.EducationEntry `json:"education"`
	Experiences  []database.ResumeItem     `json:"experiences"`
	Projects     []database.ResumeItem     `json:"projects"`
	Achievements []database.ResumeItem     `json:"achievements"`
}

// LoadResume 读取整份主简历，各部分互不依赖，并发读取。
func (s *Store) LoadResume(ctx context.Context, userID uint) (*Resume, error) {
	var (
		profile   *Profile
		skills    []database.Skill
		education []database.EducationEntry
		items     []database.ResumeItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile, err = s.GetProfile(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		skills, err = s.ListSkills(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		education, err = s.ListEducation(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		items, err = s.ItemsWithPoints(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load master resume: %w", err)
	}

	resume := &Resume{
		Profile:      *profile,
		Skills:       skills,
		Education:    education,
		Experiences:  []database.ResumeItem{},
		Projects:     []database.ResumeItem{},
		Achievements: []database.ResumeItem{},
	}
	for _, item := range items {
		switch item.ItemType {
		case database.ItemTypeExperience:
			resume.Experiences = append(resume.Experiences, item)
		case database.ItemTypeProject:
			resume.Projects = append(resume.Projects, item)
		default:
			resume.Achievements = append(resume.Achievements, item)
		}
	}
	return resume, nil
}

// ItemsWithPoints 列出用户所有条目并挂上要点，条目和要点各查一次。
func (s *Store) ItemsWithPoints(ctx context.Context, userID uint) ([]database.ResumeItem, error) {
	items, err := s.ListItems(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	var points []database.ResumeItemPoint
	if err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("resume_item_id ASC, display_order ASC, created_at ASC, id ASC").
		Find(&points).Error; err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}

	byItem := make(map[uint][]database.ResumeItemPoint, len(items))
	for _, p := range points {
		byItem[p.ResumeItemID] = append(byItem[p.ResumeItemID], p)
	}
	for i := range items {
		items[i].Points = byItem[items[i].ID]
		if items[i].Points == nil {
			items[i].Points = []database.ResumeItemPoint{}
		}
	}
	return items, nil
}

func gormNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errcode.ErrNotFound
	}
	return err
}
