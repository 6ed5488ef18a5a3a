package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type ItemType string

const (
	ItemTypeExperience ItemType = "EXPERIENCE"
	ItemTypeEducation  ItemType = "EDUCATION"
	ItemTypeSkill      ItemType = "SKILL"
)

// ItemTypes lists every item type in draft order.
var ItemTypes = []ItemType{ItemTypeExperience, ItemTypeEducation, ItemTypeSkill}

// ItemPayload is the typed content of a submission item. The concrete type
// always matches the item's ItemType.
type ItemPayload interface {
	ItemType() ItemType
	Validate() error
}

type Experience struct {
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Location     string `json:"location,omitempty"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
	Current      bool   `json:"current,omitempty"`
	Description  string `json:"description,omitempty"`
}

func (Experience) ItemType() ItemType { return ItemTypeExperience }

func (e Experience) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("experience title is required")
	}
	if strings.TrimSpace(e.Organization) == "" {
		return fmt.Errorf("experience organization is required")
	}
	if e.Current && e.EndDate != "" {
		return fmt.Errorf("current experience cannot have an end date")
	}
	return validateDateRange(e.StartDate, e.EndDate)
}

type Education struct {
	Institution  string `json:"institution"`
	Degree       string `json:"degree,omitempty"`
	FieldOfStudy string `json:"fieldOfStudy,omitempty"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
	Description  string `json:"description,omitempty"`
}

func (Education) ItemType() ItemType { return ItemTypeEducation }

func (e Education) Validate() error {
	if strings.TrimSpace(e.Institution) == "" {
		return fmt.Errorf("education institution is required")
	}
	return validateDateRange(e.StartDate, e.EndDate)
}

type Skill struct {
	Name  string `json:"name"`
	Level string `json:"level,omitempty"`
}

func (Skill) ItemType() ItemType { return ItemTypeSkill }

func (s Skill) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("skill name is required")
	}
	return nil
}

// DraftPayload is a partial draft update. A nil slice leaves that item type
// untouched; an empty, non-nil slice clears it.
type DraftPayload struct {
	Experiences []Experience `json:"experiences,omitempty"`
	Educations  []Education  `json:"educations,omitempty"`
	Skills      []Skill      `json:"skills,omitempty"`
}

// Draft is the submitter-facing view: PENDING items grouped by type.
type Draft struct {
	Submission  *Submission      `json:"submission"`
	Experiences []SubmissionItem `json:"experiences"`
	Educations  []SubmissionItem `json:"educations"`
	Skills      []SubmissionItem `json:"skills"`
}

// DecodePayload unmarshals raw into the concrete payload for itemType.
func DecodePayload(itemType ItemType, raw json.RawMessage) (ItemPayload, error) {
	var p ItemPayload
	switch itemType {
	case ItemTypeExperience:
		var v Experience
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode experience: %w", err)
		}
		p = v
	case ItemTypeEducation:
		var v Education
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode education: %w", err)
		}
		p = v
	case ItemTypeSkill:
		var v Skill
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode skill: %w", err)
		}
		p = v
	default:
		return nil, fmt.Errorf("unknown item type %q", itemType)
	}
	return p, nil
}

var dateRegexp = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])(-(0[1-9]|[12]\d|3[01]))?$`)

func validateDateRange(start, end string) error {
	if start != "" && !dateRegexp.MatchString(start) {
		return fmt.Errorf("start date %q must be YYYY-MM or YYYY-MM-DD", start)
	}
	if end != "" && !dateRegexp.MatchString(end) {
		return fmt.Errorf("end date %q must be YYYY-MM or YYYY-MM-DD", end)
	}
	// Both formats share a prefix so the shorter one compares as the month start.
	if start != "" && end != "" && end < start[:min(len(start), len(end))] {
		return fmt.Errorf("end date precedes start date")
	}
	return nil
}
