package aiservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ItemKind 标记草稿条目的类别。
type ItemKind string

const (
	KindExperience ItemKind = "experience"
	KindProject    ItemKind = "project"
)

// Draft 是校验后的生成结果。
type Draft struct {
	ContactInfo map[string]string
	Skills      []string
	Items       []DraftItem
	Education   []DraftEducation
	Model       string
}

// DraftItem 是一条工作经历或项目，项目没有组织字段。
type DraftItem struct {
	Kind         ItemKind
	Title        string
	Organization string
	StartDate    string
	EndDate      string
	Points       []string
}

// DraftEducation 是草稿中的教育条目，仅供参考，不写库。
type DraftEducation struct {
	Title     string
	Grade     string
	StartDate string
	EndDate   string
}

// Experiences 按草稿顺序返回工作经历。
func (d Draft) Experiences() []DraftItem { return d.ofKind(KindExperience) }

// Projects 按草稿顺序返回项目。
func (d Draft) Projects() []DraftItem { return d.ofKind(KindProject) }

func (d Draft) ofKind(kind ItemKind) []DraftItem {
	var out []DraftItem
	for _, it := range d.Items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

// text 接受字符串、数字、null，或把文本放在常见键名下的对象。
type text string

var textKeys = []string{"content", "text", "name", "title", "value"}

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(strings.TrimSpace(s))
	case data[0] == '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		for _, k := range textKeys {
			raw, ok := obj[k]
			if !ok {
				continue
			}
			var inner text
			if err := inner.UnmarshalJSON(raw); err != nil {
				return err
			}
			if inner != "" {
				*t = inner
				return nil
			}
		}
		*t = ""
	case data[0] == 't' || data[0] == 'f' || data[0] == '[':
		return fmt.Errorf("unexpected value %s", data)
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return fmt.Errorf("unexpected value %s", data)
		}
		*t = text(data)
	}
	return nil
}

type rawItem struct {
	Title          text   `json:"title"`
	Company        text   `json:"company"`
	Organization   text   `json:"organization"`
	StartDate      text   `json:"startDate"`
	StartDateSnake text   `json:"start_date"`
	EndDate        text   `json:"endDate"`
	EndDateSnake   text   `json:"end_date"`
	Date           text   `json:"date"`
	Points         []text `json:"points"`
}

type rawEducation struct {
	Title       text `json:"title"`
	Institution text `json:"institution"`
	Degree      text `json:"degree"`
	Grade       text `json:"grade"`
	StartDate   text `json:"startDate"`
	EndDate     text `json:"endDate"`
}

type rawDraft struct {
	ContactInfo map[string]text `json:"contactInfo"`
	Skills      []text          `json:"skills"`
	Experiences []rawItem       `json:"experiences"`
	Projects    []rawItem       `json:"projects"`
	Education   []rawEducation  `json:"education"`
	Model       text            `json:"model"`
}

func firstNonEmpty(values ...text) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

func (r rawItem) toDraft(kind ItemKind) (DraftItem, bool) {
	item := DraftItem{
		Kind:      kind,
		Title:     string(r.Title),
		StartDate: firstNonEmpty(r.StartDate, r.StartDateSnake, r.Date),
		EndDate:   firstNonEmpty(r.EndDate, r.EndDateSnake),
	}
	if kind == KindExperience {
		item.Organization = firstNonEmpty(r.Company, r.Organization)
	}
	for _, p := range r.Points {
		if p != "" {
			item.Points = append(item.Points, string(p))
		}
	}
	return item, item.Title != ""
}

// stripFences 去掉部分模型输出时包裹的 markdown 代码块。
func stripFences(body []byte) []byte {
	s := bytes.TrimSpace(body)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}
	s = s[3:]
	if nl := bytes.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = bytes.TrimPrefix(s, []byte("json"))
	}
	s = bytes.TrimSpace(s)
	s = bytes.TrimSuffix(s, []byte("```"))
	return bytes.TrimSpace(s)
}

// DecodeDraft 把生成服务的响应校验为 Draft，没有标题的条目被丢弃。
func DecodeDraft(body []byte) (*Draft, error) {
	body = stripFences(body)
	var raw rawDraft
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}

	draft := &Draft{Model: string(raw.Model)}
	if len(raw.ContactInfo) > 0 {
		draft.ContactInfo = make(map[string]string, len(raw.ContactInfo))
		for k, v := range raw.ContactInfo {
			if v != "" {
				draft.ContactInfo[k] = string(v)
			}
		}
	}
	for _, s := range raw.Skills {
		if s != "" {
			draft.Skills = append(draft.Skills, string(s))
		}
	}
	for _, r := range raw.Experiences {
		if item, ok := r.toDraft(KindExperience); ok {
			draft.Items = append(draft.Items, item)
		}
	}
	for _, r := range raw.Projects {
		if item, ok := r.toDraft(KindProject); ok {
			draft.Items = append(draft.Items, item)
		}
	}
	for _, e := range raw.Education {
		title := firstNonEmpty(e.Title, e.Institution)
		if title == "" {
			continue
		}
		if e.Degree != "" && e.Title == "" {
			title = string(e.Degree) + ", " + title
		}
		draft.Education = append(draft.Education, DraftEducation{
			Title:     title,
			Grade:     string(e.Grade),
			StartDate: string(e.StartDate),
			EndDate:   string(e.EndDate),
		})
	}
	return draft, nil
}
