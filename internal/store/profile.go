package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/submitlink/internal/model"
)

// ProfileStore writes accepted submission items into the person's profile
// tables.
type ProfileStore struct {
	db DBTX
}

func NewProfileStore(db DBTX) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) insert(ctx context.Context, what, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", what, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *ProfileStore) ImportExperience(ctx context.Context, personID, itemID int64, e model.Experience, now time.Time) (int64, error) {
	return s.insert(ctx, "experience",
		`INSERT INTO person_experiences (person_id, title, organization, location, start_date, end_date, is_current,
		 description, source_submission_item_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		personID, e.Title, e.Organization, e.Location, e.StartDate, e.EndDate, e.Current, e.Description, itemID, now,
	)
}

func (s *ProfileStore) ImportEducation(ctx context.Context, personID, itemID int64, e model.Education, now time.Time) (int64, error) {
	return s.insert(ctx, "education",
		`INSERT INTO person_educations (person_id, institution, degree, field_of_study, start_date, end_date,
		 description, source_submission_item_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		personID, e.Institution, e.Degree, e.FieldOfStudy, e.StartDate, e.EndDate, e.Description, itemID, now,
	)
}

func (s *ProfileStore) ImportSkill(ctx context.Context, personID, itemID int64, sk model.Skill, now time.Time) (int64, error) {
	return s.insert(ctx, "skill",
		`INSERT INTO person_skills (person_id, name, level, source_submission_item_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		personID, sk.Name, sk.Level, itemID, now,
	)
}

// Import dispatches on the payload's item type and returns the new profile
// row id.
func (s *ProfileStore) Import(ctx context.Context, personID, itemID int64, p model.ItemPayload, now time.Time) (int64, error) {
	switch v := p.(type) {
	case model.Experience:
		return s.ImportExperience(ctx, personID, itemID, v, now)
	case model.Education:
		return s.ImportEducation(ctx, personID, itemID, v, now)
	case model.Skill:
		return s.ImportSkill(ctx, personID, itemID, v, now)
	}
	return 0, fmt.Errorf("import: unsupported payload %T", p)
}
