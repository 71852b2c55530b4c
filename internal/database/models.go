package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 简历条目类别。
const (
	ItemTypeExperience  = "experience"
	ItemTypeProject     = "project"
	ItemTypeAchievement = "achievement"
)

// 定制简历的状态。
const (
	StatusDraft     = "draft"
	StatusFinalized = "finalized"
	StatusArchived  = "archived"
)

// User 是账号，其余数据都归属于某个用户。
type User struct {
	gorm.Model
	Username     string  `gorm:"uniqueIndex;size:64"`
	Email        string  `gorm:"size:255"`
	PasswordHash string  `gorm:"size:255"`
	FullName     *string `gorm:"size:255"`
	Phone        *string `gorm:"size:64"`
	Location     *string `gorm:"size:255"`
	About        *string `gorm:"type:text"`
	// 管理员发放或重置的临时密码，首次登录后必须修改
	MustChangePassword bool `gorm:"not null;default:false"`
}

// SourceDocument 是用户上传的文件，技能可以引用它作为来源。
type SourceDocument struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	FileName    string    `gorm:"size:255" json:"file_name"`
	ObjectKey   string    `gorm:"size:512;uniqueIndex" json:"object_key"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Skill 是主简历中的技能。
type Skill struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Category    *string   `gorm:"size:128" json:"category"`
	Level       *string   `gorm:"size:32" json:"level"`
	SourcePdfID *uint     `gorm:"index" json:"source_pdf_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EducationEntry 是主简历中的教育经历。
type EducationEntry struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"index;not null" json:"user_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description *string    `gorm:"type:text" json:"description"`
	Grade       *string    `gorm:"size:64" json:"grade"`
	StartDate   *time.Time `gorm:"type:date" json:"start_date"`
	EndDate     *time.Time `gorm:"type:date" json:"end_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (EducationEntry) TableName() string { return "education" }

// ResumeItem 是主简历的基本单元：工作经历、项目或成就。
type ResumeItem struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	UserID         uint                        `gorm:"index;not null" json:"user_id"`
	ItemType       string                      `gorm:"size:32;index;not null" json:"item_type"`
	Title          string                      `gorm:"size:255;not null" json:"title"`
	Organization   *string                     `gorm:"size:255" json:"organization"`
	Description    *string                     `gorm:"type:text" json:"description"`
	Location       *string                     `gorm:"size:255" json:"location"`
	EmploymentType *string                     `gorm:"size:64" json:"employment_type"`
	Technologies   datatypes.JSONSlice[string] `json:"technologies"`
	GithubURL      *string                     `gorm:"column:github_url;size:512" json:"github_url"`
	DemoURL        *string                     `gorm:"column:demo_url;size:512" json:"demo_url"`
	StartDate      *time.Time                  `gorm:"type:date" json:"start_date"`
	EndDate        *time.Time                  `gorm:"type:date" json:"end_date"`
	IsCurrent      bool                        `gorm:"not null;default:false" json:"is_current"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
	Points         []ResumeItemPoint           `gorm:"constraint:OnDelete:CASCADE" json:"points,omitempty"`
}

// ResumeItemPoint 是主简历条目下的一条要点。
type ResumeItemPoint struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ResumeItemID uint      `gorm:"index;not null" json:"resume_item_id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	DisplayOrder int       `gorm:"not null;default:0" json:"display_order"`
	UsageCount   int       `gorm:"not null;default:0" json:"usage_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Job 是定制简历所针对的职位。
type Job struct {
	ID          uint    `gorm:"primaryKey"`
	UserID      uint    `gorm:"index;not null"`
	Title       *string `gorm:"size:255"`
	Company     *string `gorm:"size:255"`
	Description string  `gorm:"type:text"`
	JobURL      *string `gorm:"column:job_url;size:1024"`
	CreatedAt   time.Time
}

// CuratedResume 是针对某个职位、引用主简历条目的定制简历。
type CuratedResume struct {
	ID               uint    `gorm:"primaryKey"`
	UserID           uint    `gorm:"index;not null"`
	JobID            *uint   `gorm:"index"`
	Job              *Job    `gorm:"constraint:OnDelete:SET NULL"`
	Title            string  `gorm:"size:255;not null"`
	IsAIGenerated    bool    `gorm:"column:is_ai_generated;not null;default:false"`
	GenerationPrompt *string `gorm:"type:text"`
	ModelUsed        *string `gorm:"size:128"`
	GenerationNotes  *string `gorm:"type:text"`
	Status           string  `gorm:"size:32;not null;default:draft"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	FinalizedAt      *time.Time
	Items            []CuratedResumeItemJunction `gorm:"constraint:OnDelete:CASCADE"`
}

// CuratedResumeItemJunction 关联定制简历与主简历条目，并保存本份简历的覆盖值。
type CuratedResumeItemJunction struct {
	ID                   uint                     `gorm:"primaryKey"`
	CuratedResumeID      uint                     `gorm:"not null;uniqueIndex:idx_curated_item_order"`
	ResumeItemID         uint                     `gorm:"index;not null"`
	ResumeItem           *ResumeItem              `gorm:"constraint:OnDelete:CASCADE"`
	DisplayOrder         int                      `gorm:"not null;uniqueIndex:idx_curated_item_order"`
	TitleOverride        *string                  `gorm:"size:255"`
	OrganizationOverride *string                  `gorm:"size:255"`
	WasEditedByUser      bool                     `gorm:"not null;default:false"`
	Points               []CuratedResumeItemPoint `gorm:"foreignKey:CuratedResumeItemJunctionID;constraint:OnDelete:CASCADE"`
}

func (CuratedResumeItemJunction) TableName() string { return "curated_resume_items_junction" }

// CuratedResumeItemPoint 是定制条目下的要点，可追溯到主简历要点。
type CuratedResumeItemPoint struct {
	ID                          uint             `gorm:"primaryKey"`
	CuratedResumeItemJunctionID uint             `gorm:"index;not null"`
	OriginalPointID             *uint            `gorm:"index"`
	OriginalPoint               *ResumeItemPoint `gorm:"foreignKey:OriginalPointID;constraint:OnDelete:SET NULL"`
	Content                     string           `gorm:"type:text;not null"`
	DisplayOrder                int              `gorm:"not null;default:0"`
	WasAIGenerated              bool             `gorm:"column:was_ai_generated;not null;default:false"`
	WasAIModified               bool             `gorm:"column:was_ai_modified;not null;default:false"`
}

// AllModels 按依赖顺序列出所有表，供 AutoMigrate 使用。
func AllModels() []any {
	return []any{
		&User{},
		&SourceDocument{},
		&Skill{},
		&EducationEntry{},
		&ResumeItem{},
		&ResumeItemPoint{},
		&Job{},
		&CuratedResume{},
		&CuratedResumeItemJunction{},
		&CuratedResumeItemPoint{},
	}
}
