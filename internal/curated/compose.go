// Package curated 根据生成的草稿组装针对职位的定制简历，
// 并以引用主简历的方式保存。
package curated

import (
	"strings"

	"resumate/internal/aiservice"
	"resumate/internal/database"
)

// JobInput 描述简历所针对的职位。
type JobInput struct {
	Title       *string
	Company     *string
	Description string
	URL         *string
}

// ComposeMeta 携带草稿之外的请求数据。
type ComposeMeta struct {
	Title string
	Job   *JobInput
}

// Document 是待保存的定制简历。
type Document struct {
	Title            string
	Job              *JobInput
	GenerationPrompt *string
	ModelUsed        *string
	Items            []ComposedItem
}

// ComposedItem 是与主简历对照后的经历或项目，没有匹配到主简历条目时 MasterItemID 为 nil。
type ComposedItem struct {
	Kind                 aiservice.ItemKind
	DraftTitle           string
	DraftOrganization    string
	MasterItemID         *uint
	TitleOverride        *string
	OrganizationOverride *string
	WasEditedByUser      bool
	DisplayOrder         int
	Points               []ComposedPoint
}

// Linked 判断条目是否引用了主简历条目。
func (i ComposedItem) Linked() bool { return i.MasterItemID != nil }

// ComposedPoint 是草稿中的要点，尽可能追溯到主简历要点。
type ComposedPoint struct {
	Content         string
	OriginalPointID *uint
	WasAIGenerated  bool
	WasAIModified   bool
}

// normalize 去掉首尾空白、合并内部空白并转小写。
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compose 把草稿与用户的主简历条目对照。经历按标题和组织匹配，项目按标题匹配；
// 精确相等优先于忽略空白与大小写的匹配。未匹配的条目保留，MasterItemID 为 nil。
// 先经历后项目，从 0 开始编号。
func Compose(draft aiservice.Draft, items []database.ResumeItem, meta ComposeMeta) Document {
	doc := Document{Title: meta.Title, Job: meta.Job}
	if meta.Job != nil && strings.TrimSpace(meta.Job.Description) != "" {
		prompt := meta.Job.Description
		doc.GenerationPrompt = &prompt
	}
	if draft.Model != "" {
		model := draft.Model
		doc.ModelUsed = &model
	}

	byType := map[string][]database.ResumeItem{}
	for _, it := range items {
		byType[it.ItemType] = append(byType[it.ItemType], it)
	}

	order := 0
	for _, d := range draft.Experiences() {
		master := matchItem(d, byType[database.ItemTypeExperience], true)
		doc.Items = append(doc.Items, composeItem(d, master, order))
		order++
	}
	for _, d := range draft.Projects() {
		master := matchItem(d, byType[database.ItemTypeProject], false)
		doc.Items = append(doc.Items, composeItem(d, master, order))
		order++
	}
	return doc
}

func matchItem(d aiservice.DraftItem, candidates []database.ResumeItem, withOrg bool) *database.ResumeItem {
	for i := range candidates {
		c := &candidates[i]
		if c.Title == d.Title && (!withOrg || deref(c.Organization) == d.Organization) {
			return c
		}
	}
	title, org := normalize(d.Title), normalize(d.Organization)
	for i := range candidates {
		c := &candidates[i]
		if normalize(c.Title) == title && (!withOrg || normalize(deref(c.Organization)) == org) {
			return c
		}
	}
	return nil
}

func composeItem(d aiservice.DraftItem, master *database.ResumeItem, order int) ComposedItem {
	item := ComposedItem{
		Kind:              d.Kind,
		DraftTitle:        d.Title,
		DraftOrganization: d.Organization,
		DisplayOrder:      order,
	}
	if master == nil {
		for _, content := range d.Points {
			item.Points = append(item.Points, ComposedPoint{Content: content, WasAIGenerated: true})
		}
		return item
	}

	id := master.ID
	item.MasterItemID = &id
	if d.Title != master.Title {
		title := d.Title
		item.TitleOverride = &title
	}
	if d.Kind == aiservice.KindExperience && d.Organization != "" && d.Organization != deref(master.Organization) {
		org := d.Organization
		item.OrganizationOverride = &org
	}
	item.WasEditedByUser = item.TitleOverride != nil || item.OrganizationOverride != nil
	item.Points = linkPoints(d.Points, master.Points)
	return item
}

// linkPoints 先为所有要点做精确匹配，剩下的要点再用规范化后的内容匹配未被占用的原始要点。
func linkPoints(bullets []string, originals []database.ResumeItemPoint) []ComposedPoint {
	used := make([]bool, len(originals))
	linked := make([]int, len(bullets))
	for i := range linked {
		linked[i] = -1
	}

	pass := func(eq func(a, b string) bool) {
		for bi, content := range bullets {
			if linked[bi] >= 0 {
				continue
			}
			for oi, p := range originals {
				if !used[oi] && eq(p.Content, content) {
					used[oi] = true
					linked[bi] = oi
					break
				}
			}
		}
	}
	pass(func(a, b string) bool { return a == b })
	pass(func(a, b string) bool { return normalize(a) == normalize(b) })

	out := make([]ComposedPoint, 0, len(bullets))
	for bi, content := range bullets {
		p := ComposedPoint{Content: content, WasAIGenerated: true}
		if oi := linked[bi]; oi >= 0 {
			id := originals[oi].ID
			p.OriginalPointID = &id
			p.WasAIModified = originals[oi].Content != content
		}
		out = append(out, p)
	}
	return out
}
