package curated

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"resumate/internal/database"
	"resumate/internal/errcode"
)

// Store 持久化定制简历。
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore 包装 gorm 句柄。
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// SkippedItem 是因匹配不到主简历条目而未保存的草稿条目。
type SkippedItem struct {
	Kind         string `json:"kind"`
	Title        string `json:"title"`
	Organization string `json:"organization,omitempty"`
}

// SaveResult 是 Save 的结果。
type SaveResult struct {
	ID        uint          `json:"id"`
	Title     string        `json:"title"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	JobID     *uint         `json:"job_id"`
	Skipped   []SkippedItem `json:"skipped"`
}

// Summary 是列表中的一行，不加载条目。
type Summary struct {
	ID            uint       `json:"id"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	IsAIGenerated bool       `gorm:"column:is_ai_generated" json:"is_ai_generated"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	FinalizedAt   *time.Time `json:"finalized_at"`
	JobTitle      *string    `json:"job_title"`
	JobCompany    *string    `json:"job_company"`
}

// FullDocument 是已按主简历解析出条目的定制简历。
type FullDocument struct {
	ID               uint       `json:"id"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	IsAIGenerated    bool       `json:"is_ai_generated"`
	GenerationPrompt *string    `json:"generation_prompt"`
	ModelUsed        *string    `json:"model_used"`
	GenerationNotes  *string    `json:"generation_notes"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	FinalizedAt      *time.Time `json:"finalized_at"`
	Job              *JobView   `json:"job"`
	Experiences      []ItemView `json:"experiences"`
	Projects         []ItemView `json:"projects"`
	Achievements     []ItemView `json:"achievements"`
}

// JobView 是定制简历对应的职位。
type JobView struct {
	ID          uint    `json:"id"`
	Title       *string `json:"title"`
	Company     *string `json:"company"`
	Description string  `json:"description"`
	JobURL      *string `json:"job_url"`
}

// ItemView 是定制条目。Title 与 Organization 为生效值：
// 有覆盖值取覆盖值，否则取主简历的值。
type ItemView struct {
	JunctionID           uint                        `json:"junction_id"`
	ResumeItemID         uint                        `json:"resume_item_id"`
	ItemType             string                      `json:"item_type"`
	DisplayOrder         int                         `json:"display_order"`
	Title                string                      `json:"title"`
	Organization         *string                     `json:"organization"`
	TitleOverride        *string                     `json:"title_override"`
	OrganizationOverride *string                     `json:"organization_override"`
	WasEditedByUser      bool                        `json:"was_edited_by_user"`
	Description          *string                     `json:"description"`
	Location             *string                     `json:"location"`
	EmploymentType       *string                     `json:"employment_type"`
	Technologies         datatypes.JSONSlice[string] `json:"technologies"`
	GithubURL            *string                     `json:"github_url"`
	DemoURL              *string                     `json:"demo_url"`
	StartDate            *time.Time                  `json:"start_date"`
	EndDate              *time.Time                  `json:"end_date"`
	IsCurrent            bool                        `json:"is_current"`
	Points               []PointView                 `json:"points"`
}

// PointView 是定制要点。
type PointView struct {
	ID              uint   `json:"id"`
	OriginalPointID *uint  `json:"original_point_id"`
	Content         string `json:"content"`
	DisplayOrder    int    `json:"display_order"`
	WasAIGenerated  bool   `json:"was_ai_generated"`
	WasAIModified   bool   `json:"was_ai_modified"`
}

// Skipped 列出 Save 不会写入的条目。
func (d Document) Skipped() []SkippedItem {
	var out []SkippedItem
	for _, it := range d.ordered() {
		if !it.Linked() {
			out = append(out, SkippedItem{Kind: string(it.Kind), Title: it.DraftTitle, Organization: it.DraftOrganization})
		}
	}
	return out
}

// ordered 先经历后项目，组内保持原顺序。
func (d Document) ordered() []ComposedItem {
	out := make([]ComposedItem, 0, len(d.Items))
	for _, kind := range []string{database.ItemTypeExperience, database.ItemTypeProject} {
		for _, it := range d.Items {
			if string(it.Kind) == kind {
				out = append(out, it)
			}
		}
	}
	return out
}

func generationNotes(skipped []SkippedItem) *string {
	if len(skipped) == 0 {
		return nil
	}
	parts := make([]string, 0, len(skipped))
	for _, s := range skipped {
		if s.Organization != "" {
			parts = append(parts, fmt.Sprintf("%s %q at %q", s.Kind, s.Title, s.Organization))
		} else {
			parts = append(parts, fmt.Sprintf("%s %q", s.Kind, s.Title))
		}
	}
	notes := "skipped unmatched items: " + strings.Join(parts, "; ")
	return &notes
}

// checkReferences 确认引用的主简历条目与要点都属于 userID。
func checkReferences(tx *gorm.DB, userID uint, items []ComposedItem) error {
	var itemIDs, pointIDs []uint
	for _, it := range items {
		if !it.Linked() {
			continue
		}
		itemIDs = append(itemIDs, *it.MasterItemID)
		for _, p := range it.Points {
			if p.OriginalPointID != nil {
				pointIDs = append(pointIDs, *p.OriginalPointID)
			}
		}
	}
	if err := checkOwned(tx, &database.ResumeItem{}, userID, itemIDs); err != nil {
		if errors.Is(err, errNotOwned) {
			return errcode.Invalid("items", "references a resume item that does not exist")
		}
		return err
	}
	if err := checkOwned(tx, &database.ResumeItemPoint{}, userID, pointIDs); err != nil {
		if errors.Is(err, errNotOwned) {
			return errcode.Invalid("points", "references a point that does not exist")
		}
		return err
	}
	return nil
}

var errNotOwned = errors.New("not owned")

func checkOwned(tx *gorm.DB, model any, userID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	distinct := map[uint]struct{}{}
	for _, id := range ids {
		distinct[id] = struct{}{}
	}
	var n int64
	if err := tx.Model(model).Where("user_id = ? AND id IN ?", userID, ids).Count(&n).Error; err != nil {
		return err
	}
	if int(n) != len(distinct) {
		return errNotOwned
	}
	return nil
}

// Save 在一个事务内写入：职位、标记为 AI 生成的草稿简历，
// 以及每个已关联条目的关联行和要点。未关联的条目不写入，
// 在结果中返回。失败时全部回滚。
func (s *Store) Save(ctx context.Context, userID uint, doc Document) (*SaveResult, error) {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		return nil, errcode.Required("title")
	}
	skipped := doc.Skipped()
	result := &SaveResult{Title: title, Status: database.StatusDraft, Skipped: skipped}

	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		items := doc.ordered()
		if err := checkReferences(tx, userID, items); err != nil {
			return err
		}

		if doc.Job != nil && strings.TrimSpace(doc.Job.Description) != "" {
			job := database.Job{
				UserID:      userID,
				Title:       doc.Job.Title,
				Company:     doc.Job.Company,
				Description: doc.Job.Description,
				JobURL:      doc.Job.URL,
			}
			if err := tx.Create(&job).Error; err != nil {
				return &errcode.TransactionError{Op: "insert job", Err: err}
			}
			result.JobID = &job.ID
		}

		resume := database.CuratedResume{
			UserID:           userID,
			JobID:            result.JobID,
			Title:            title,
			IsAIGenerated:    true,
			GenerationPrompt: doc.GenerationPrompt,
			ModelUsed:        doc.ModelUsed,
			GenerationNotes:  generationNotes(skipped),
			Status:           database.StatusDraft,
		}
		if err := tx.Create(&resume).Error; err != nil {
			return &errcode.TransactionError{Op: "insert curated resume", Err: err}
		}
		result.ID = resume.ID
		result.CreatedAt = resume.CreatedAt

		order := 0
		for _, item := range items {
			if !item.Linked() {
				continue
			}
			junction := database.CuratedResumeItemJunction{
				CuratedResumeID:      resume.ID,
				ResumeItemID:         *item.MasterItemID,
				DisplayOrder:         order,
				TitleOverride:        item.TitleOverride,
				OrganizationOverride: item.OrganizationOverride,
				WasEditedByUser:      item.WasEditedByUser,
			}
			if err := tx.Create(&junction).Error; err != nil {
				return &errcode.TransactionError{Op: "insert curated item", Err: err}
			}
			order++

			for i, p := range item.Points {
				point := database.CuratedResumeItemPoint{
					CuratedResumeItemJunctionID: junction.ID,
					OriginalPointID:             p.OriginalPointID,
					Content:                     p.Content,
					DisplayOrder:                i,
					WasAIGenerated:              true,
					WasAIModified:               p.WasAIModified,
				}
				if err := tx.Create(&point).Error; err != nil {
					return &errcode.TransactionError{Op: "insert curated point", Err: err}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save curated resume: %w", err)
	}
	return result, nil
}

type itemRow struct {
	JunctionID           uint
	ResumeItemID         uint
	DisplayOrder         int
	TitleOverride        *string
	OrganizationOverride *string
	WasEditedByUser      bool
	ItemType             string
	Title                string
	Organization         *string
	Description          *string
	Location             *string
	EmploymentType       *string
	Technologies         datatypes.JSONSlice[string]
	GithubURL            *string `gorm:"column:github_url"`
	DemoURL              *string `gorm:"column:demo_url"`
	StartDate            *time.Time
	EndDate              *time.Time
	IsCurrent            bool
}

const itemColumns = `j.id AS junction_id, j.resume_item_id, j.display_order, j.title_override,
	j.organization_override, j.was_edited_by_user, ri.item_type, ri.title, ri.organization,
	ri.description, ri.location, ri.employment_type, ri.technologies, ri.github_url, ri.demo_url,
	ri.start_date, ri.end_date, ri.is_current`

func itemsQuery(db *gorm.DB, resumeID uint) *gorm.DB {
	return db.Table("curated_resume_items_junction AS j").
		Select(itemColumns).
		Joins("JOIN resume_items ri ON ri.id = j.resume_item_id").
		Where("j.curated_resume_id = ?", resumeID)
}

func (r itemRow) view() ItemView {
	v := ItemView{
		JunctionID:           r.JunctionID,
		ResumeItemID:         r.ResumeItemID,
		ItemType:             r.ItemType,
		DisplayOrder:         r.DisplayOrder,
		Title:                r.Title,
		Organization:         r.Organization,
		TitleOverride:        r.TitleOverride,
		OrganizationOverride: r.OrganizationOverride,
		WasEditedByUser:      r.WasEditedByUser,
		Description:          r.Description,
		Location:             r.Location,
		EmploymentType:       r.EmploymentType,
		Technologies:         r.Technologies,
		GithubURL:            r.GithubURL,
		DemoURL:              r.DemoURL,
		StartDate:            r.StartDate,
		EndDate:              r.EndDate,
		IsCurrent:            r.IsCurrent,
		Points:               []PointView{},
	}
	if r.TitleOverride != nil {
		v.Title = *r.TitleOverride
	}
	if r.OrganizationOverride != nil {
		v.Organization = r.OrganizationOverride
	}
	return v
}

// Get 用三次查询读取定制简历及其条目和要点。
// userID 名下不存在时返回 nil, nil。
func (s *Store) Get(ctx context.Context, id, userID uint) (*FullDocument, error) {
	db := s.conn(ctx)

	var resume database.CuratedResume
	err := db.Joins("Job").
		Where("curated_resumes.id = ? AND curated_resumes.user_id = ?", id, userID).
		First(&resume).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get curated resume %d: %w", id, err)
	}

	var rows []itemRow
	if err := itemsQuery(db, resume.ID).Order("j.display_order ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load curated items: %w", err)
	}

	var points []database.CuratedResumeItemPoint
	if err := db.Table("curated_resume_item_points AS p").
		Select("p.*").
		Joins("JOIN curated_resume_items_junction j ON j.id = p.curated_resume_item_junction_id").
		Where("j.curated_resume_id = ?", resume.ID).
		Order("j.display_order ASC, p.display_order ASC, p.id ASC").
		Scan(&points).Error; err != nil {
		return nil, fmt.Errorf("load curated points: %w", err)
	}

	byJunction := make(map[uint][]PointView, len(rows))
	for _, p := range points {
		byJunction[p.CuratedResumeItemJunctionID] = append(byJunction[p.CuratedResumeItemJunctionID], PointView{
			ID:              p.ID,
			OriginalPointID: p.OriginalPointID,
			Content:         p.Content,
			DisplayOrder:    p.DisplayOrder,
			WasAIGenerated:  p.WasAIGenerated,
			WasAIModified:   p.WasAIModified,
		})
	}

	doc := &FullDocument{
		ID:               resume.ID,
		Title:            resume.Title,
		Status:           resume.Status,
		IsAIGenerated:    resume.IsAIGenerated,
		GenerationPrompt: resume.GenerationPrompt,
		ModelUsed:        resume.ModelUsed,
		GenerationNotes:  resume.GenerationNotes,
		CreatedAt:        resume.CreatedAt,
		UpdatedAt:        resume.UpdatedAt,
		FinalizedAt:      resume.FinalizedAt,
		Experiences:      []ItemView{},
		Projects:         []ItemView{},
		Achievements:     []ItemView{},
	}
	if resume.Job != nil {
		doc.Job = &JobView{
			ID:          resume.Job.ID,
			Title:       resume.Job.Title,
			Company:     resume.Job.Company,
			Description: resume.Job.Description,
			JobURL:      resume.Job.JobURL,
		}
	}
	for _, r := range rows {
		v := r.view()
		if pts, ok := byJunction[r.JunctionID]; ok {
			v.Points = pts
		}
		switch r.ItemType {
		case database.ItemTypeExperience:
			doc.Experiences = append(doc.Experiences, v)
		case database.ItemTypeProject:
			doc.Projects = append(doc.Projects, v)
		default:
			doc.Achievements = append(doc.Achievements, v)
		}
	}
	return doc, nil
}

func summaries(db *gorm.DB) *gorm.DB {
	return db.Table("curated_resumes AS cr").
		Select(`cr.id, cr.title, cr.status, cr.is_ai_generated, cr.created_at, cr.updated_at,
			cr.finalized_at, jb.title AS job_title, jb.company AS job_company`).
		Joins("LEFT JOIN jobs jb ON jb.id = cr.job_id")
}

// List 按时间倒序返回用户的定制简历。
func (s *Store) List(ctx context.Context, userID uint) ([]Summary, error) {
	out := []Summary{}
	if err := summaries(s.conn(ctx)).
		Where("cr.user_id = ?", userID).
		Order("cr.created_at DESC, cr.id DESC").
		Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("list curated resumes: %w", err)
	}
	return out, nil
}

// ValidStatus 判断 status 是否为合法状态。
func ValidStatus(status string) bool {
	switch status {
	case database.StatusDraft, database.StatusFinalized, database.StatusArchived:
		return true
	}
	return false
}

// UpdateStatus 修改状态。进入 finalized 时记录 finalized_at，
// 之后不再清除。
func (s *Store) UpdateStatus(ctx context.Context, id, userID uint, status string) (*Summary, error) {
	if !ValidStatus(status) {
		return nil, errcode.Invalid("status", "must be one of draft, finalized, archived")
	}

	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var resume database.CuratedResume
		err := tx.Select("id", "status").Where("id = ? AND user_id = ?", id, userID).First(&resume).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errcode.ErrNotFound
		}
		if err != nil {
			return err
		}

		cols := map[string]any{"status": status}
		if status == database.StatusFinalized && resume.Status != database.StatusFinalized {
			cols["finalized_at"] = s.now()
		}
		return tx.Model(&database.CuratedResume{}).Where("id = ?", id).Updates(cols).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update status of curated resume %d: %w", id, err)
	}

	var out Summary
	if err := summaries(s.conn(ctx)).Where("cr.id = ?", id).Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("reload curated resume %d: %w", id, err)
	}
	return &out, nil
}

// Delete 删除定制简历及其条目和要点，主简历数据与职位保留。
func (s *Store) Delete(ctx context.Context, id, userID uint) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&database.CuratedResume{}).Where("id = ? AND user_id = ?", id, userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return errcode.ErrNotFound
		}

		junctions := tx.Model(&database.CuratedResumeItemJunction{}).Select("id").Where("curated_resume_id = ?", id)
		if err := tx.Where("curated_resume_item_junction_id IN (?)", junctions).
			Delete(&database.CuratedResumeItemPoint{}).Error; err != nil {
			return fmt.Errorf("delete points: %w", err)
		}
		if err := tx.Where("curated_resume_id = ?", id).Delete(&database.CuratedResumeItemJunction{}).Error; err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
		return tx.Delete(&database.CuratedResume{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete curated resume %d: %w", id, err)
	}
	return nil
}

// OverrideInput 修改条目在本份简历中的标题与组织。
// nil 表示不变，空串表示清除覆盖值。
type OverrideInput struct {
	Title        *string `json:"title"`
	Organization *string `json:"organization"`
}

// override 返回要保存的覆盖值：空白或与主简历相同则为 nil。
func override(value *string, master string) *string {
	v := strings.TrimSpace(*value)
	if v == "" || v == master {
		return nil
	}
	return &v
}

// UpdateItemOverrides 应用用户对单个定制条目的修改并返回结果。
func (s *Store) UpdateItemOverrides(ctx context.Context, resumeID, junctionID, userID uint, in OverrideInput) (*ItemView, error) {
	if in.Title == nil && in.Organization == nil {
		return nil, errcode.Invalid("", "no fields to update")
	}

	var row itemRow
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var current itemRow
		res := itemsQuery(tx, resumeID).
			Joins("JOIN curated_resumes cr ON cr.id = j.curated_resume_id").
			Where("j.id = ? AND cr.user_id = ?", junctionID, userID).
			Limit(1).
			Scan(&current)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errcode.ErrNotFound
		}

		titleOverride, orgOverride := current.TitleOverride, current.OrganizationOverride
		if in.Title != nil {
			titleOverride = override(in.Title, current.Title)
		}
		if in.Organization != nil {
			orgOverride = override(in.Organization, deref(current.Organization))
		}

		if err := tx.Model(&database.CuratedResumeItemJunction{}).
			Where("id = ?", junctionID).
			Updates(map[string]any{
				"title_override":        titleOverride,
				"organization_override": orgOverride,
				"was_edited_by_user":    titleOverride != nil || orgOverride != nil,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&database.CuratedResume{}).
			Where("id = ?", resumeID).
			Update("updated_at", s.now()).Error; err != nil {
			return err
		}

		current.TitleOverride, current.OrganizationOverride = titleOverride, orgOverride
		current.WasEditedByUser = titleOverride != nil || orgOverride != nil
		row = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update curated item %d: %w", junctionID, err)
	}

	v := row.view()
	var points []database.CuratedResumeItemPoint
	if err := s.conn(ctx).
		Where("curated_resume_item_junction_id = ?", junctionID).
		Order("display_order ASC, id ASC").
		Find(&points).Error; err != nil {
		return nil, fmt.Errorf("load curated points: %w", err)
	}
	for _, p := range points {
		v.Points = append(v.Points, PointView{
			ID:              p.ID,
			OriginalPointID: p.OriginalPointID,
			Content:         p.Content,
			DisplayOrder:    p.DisplayOrder,
			WasAIGenerated:  p.WasAIGenerated,
			WasAIModified:   p.WasAIModified,
		})
	}
	return &v, nil
}
