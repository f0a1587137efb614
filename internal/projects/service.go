package projects

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"veriflow-backend/internal/auth"
	"veriflow-backend/internal/evidence"
	"veriflow-backend/internal/identity"
	"veriflow-backend/internal/models"
	"veriflow-backend/internal/pkg/apperrors"
	"veriflow-backend/internal/verification"
)

// Service owns project aggregates: validated CRUD, the evidence append
// pipeline, and status transitions.
type Service struct {
	DB        *gorm.DB
	Processor *evidence.Processor
	Identity  *identity.Service
}

// View is a project with its owner reference resolved for display. The
// raw owner ID stays authoritative in the stored aggregate.
type View struct {
	models.Project
	Owner *identity.Summary `json:"owner"`
}

type CreateInput struct {
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	Notes        string                 `json:"notes"`
	Owner        string                 `json:"owner"`
	Location     *models.Location       `json:"location"`
	AreaHectares *float64               `json:"areaHectares"`
	CropType     string                 `json:"cropType"`
	StartDate    *time.Time             `json:"startDate"`
	EndDate      *time.Time             `json:"endDate"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// Create validates input and persists a new draft project owned by the
// caller. Admins may register a project for an explicit owner.
func (s *Service) Create(ctx context.Context, caller *auth.Principal, in CreateInput) (*models.Project, error) {
	if in.Title == "" {
		return nil, apperrors.Validation("title is required")
	}
	if in.AreaHectares != nil && *in.AreaHectares < 0 {
		return nil, apperrors.Validation("areaHectares must be non-negative")
	}

	owner := caller.ID
	if in.Owner != "" && in.Owner != caller.ID.String() {
		if !caller.IsAdmin() {
			return nil, apperrors.Forbidden("Forbidden")
		}
		id, err := uuid.Parse(in.Owner)
		if err != nil {
			return nil, apperrors.Validation("owner is required")
		}
		owner = id
	}
	if owner == uuid.Nil {
		return nil, apperrors.Validation("owner is required")
	}

	p := &models.Project{
		Title:            in.Title,
		Description:      in.Description,
		Notes:            in.Notes,
		Owner:            owner,
		Location:         datatypes.NewJSONType(in.Location),
		AreaHectares:     in.AreaHectares,
		CropType:         models.NormalizeCropType(in.CropType),
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
		Status:           string(verification.StatusDraft),
		Images:           datatypes.JSONSlice[models.EvidenceImage]{},
		VerificationInfo: datatypes.NewJSONType(models.Verification{}),
		Metadata:         datatypes.JSONMap(in.Metadata),
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return nil, apperrors.Storage(err)
	}
	return p, nil
}

// Filter selects projects by equality on owner and/or status.
type Filter struct {
	Owner  *uuid.UUID
	Status string
}

// List returns matching projects, most recently created first, with
// owner summaries resolved. An empty filter returns everything.
func (s *Service) List(ctx context.Context, f Filter) ([]View, error) {
	q := s.DB.WithContext(ctx).Model(&models.Project{})
	if f.Owner != nil {
		q = q.Where("owner = ?", *f.Owner)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var list []models.Project
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, apperrors.Storage(err)
	}

	ids := make([]uuid.UUID, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.Owner)
	}
	owners, err := s.Identity.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(list))
	for _, p := range list {
		v := View{Project: p}
		if sum, ok := owners[p.Owner]; ok {
			o := sum
			v.Owner = &o
		}
		views = append(views, v)
	}
	return views, nil
}

// GetByID returns the project with its owner resolved. Public read, no
// ownership filter.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*View, error) {
	p, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	owner, err := s.Identity.Lookup(ctx, p.Owner)
	if err != nil {
		return nil, err
	}
	return &View{Project: *p, Owner: owner}, nil
}

type UpdateInput struct {
	Title        *string                `json:"title"`
	Description  *string                `json:"description"`
	Notes        *string                `json:"notes"`
	Location     *models.Location       `json:"location"`
	AreaHectares *float64               `json:"areaHectares"`
	CropType     *string                `json:"cropType"`
	StartDate    *time.Time             `json:"startDate"`
	EndDate      *time.Time             `json:"endDate"`
	Metadata     map[string]interface{} `json:"metadata"`
	Status       *string                `json:"status"`
}

// Update applies field updates for the owner or an admin. Status changes
// go through the verification transition rules; moving to approved stamps
// the verification block with the approving admin.
func (s *Service) Update(ctx context.Context, caller *auth.Principal, id uuid.UUID, in UpdateInput) (*models.Project, error) {
	p, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	actor := actorFor(caller, p)
	if !actor.IsOwner && !actor.IsAdmin {
		return nil, apperrors.Forbidden("Forbidden")
	}

	if in.Title != nil {
		if *in.Title == "" {
			return nil, apperrors.Validation("title is required")
		}
		p.Title = *in.Title
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Notes != nil {
		p.Notes = *in.Notes
	}
	if in.Location != nil {
		p.Location = datatypes.NewJSONType(in.Location)
	}
	if in.AreaHectares != nil {
		if *in.AreaHectares < 0 {
			return nil, apperrors.Validation("areaHectares must be non-negative")
		}
		p.AreaHectares = in.AreaHectares
	}
	if in.CropType != nil {
		p.CropType = models.NormalizeCropType(*in.CropType)
	}
	if in.StartDate != nil {
		p.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		p.EndDate = in.EndDate
	}
	if in.Metadata != nil {
		p.Metadata = datatypes.JSONMap(in.Metadata)
	}
	if in.Status != nil {
		next, err := verification.Transition(verification.Status(p.Status), *in.Status, actor)
		if err != nil {
			return nil, err
		}
		p.Status = string(next)
		if next == verification.StatusApproved {
			now := time.Now().UTC()
			adminID := caller.ID
			p.VerificationInfo = datatypes.NewJSONType(models.Verification{
				Verified:   true,
				VerifiedBy: &adminID,
				VerifiedAt: &now,
			})
		}
	}

	if err := s.DB.WithContext(ctx).Save(p).Error; err != nil {
		return nil, apperrors.Storage(err)
	}
	return p, nil
}

// Delete removes the project and all embedded evidence irrevocably.
// This is also the implemented rejection path.
func (s *Service) Delete(ctx context.Context, caller *auth.Principal, id uuid.UUID) error {
	p, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if !verification.CanDelete(actorFor(caller, p)) {
		return apperrors.Forbidden("Forbidden")
	}
	if err := s.DB.WithContext(ctx).Delete(&models.Project{}, "id = ?", id).Error; err != nil {
		return apperrors.Storage(err)
	}
	log.Info().Str("project_id", id.String()).Str("deleted_by", caller.ID.String()).Msg("project deleted")
	return nil
}

// AppendEvidence runs the evidence pipeline and appends the result to the
// project's images. The append itself is a single read-modify-write under
// a row lock so concurrent uploads to the same project both survive.
func (s *Service) AppendEvidence(ctx context.Context, caller *auth.Principal, id uuid.UUID, upload *evidence.Upload, fields evidence.Fields) (*models.EvidenceImage, error) {
	p, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor := actorFor(caller, p); !actor.IsOwner && !actor.IsAdmin {
		return nil, apperrors.Forbidden("Forbidden")
	}

	// File writes happen outside the lock; only the row append holds it.
	img, err := s.Processor.Process(upload, fields)
	if err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// sqlite (tests) has no FOR UPDATE and serializes writers itself.
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var current models.Project
		if err := q.First(&current, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Project not found")
			}
			return apperrors.Storage(err)
		}
		current.Images = append(current.Images, *img)
		if err := tx.Save(&current).Error; err != nil {
			return apperrors.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *Service) fetch(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Project not found")
		}
		return nil, apperrors.Storage(err)
	}
	return &p, nil
}

func actorFor(caller *auth.Principal, p *models.Project) verification.Actor {
	if caller == nil {
		return verification.Actor{}
	}
	return verification.Actor{
		IsOwner: caller.ID == p.Owner,
		IsAdmin: caller.IsAdmin(),
	}
}
