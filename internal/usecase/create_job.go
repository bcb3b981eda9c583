// Package usecase implements the three application-level operations
// this service exposes: create-job (C8), sync-job (C9), and
// poll-updates (C10).
package usecase

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/matching"
	"github.com/fieldroute/jobsync/internal/outbox"
	pkgerrors "github.com/fieldroute/jobsync/internal/pkg/errors"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/repos"
)

// CreateJobRequest is the input to CreateJob, mirroring
// original_source/src/application/use_cases/create_job.py's
// CreateJobRequest dataclass.
type CreateJobRequest struct {
	Summary               string
	Street, City, State, ZipCode string
	HomeownerName, HomeownerPhone, HomeownerEmail string
	CreatedByCompanyID    uuid.UUID
	CreatedByTechnicianID uuid.UUID
	RequiredSkills        []string
	SkillLevels           map[string]domain.SkillLevel
	Category              string
}

// CreateJobResult mirrors the original's CreateJobResult dataclass.
type CreateJobResult struct {
	Job              *domain.Job
	Routings         []*domain.JobRouting
	AverageMatchScore float64
}

type CreateJob struct {
	db         *gorm.DB
	log        *logger.Logger
	companies  repos.CompanyRepo
	techs      repos.TechnicianRepo
	jobs       repos.JobRepo
	routings   repos.JobRoutingRepo
	outboxSvc  *outbox.Service
}

func NewCreateJob(db *gorm.DB, baseLog *logger.Logger, companies repos.CompanyRepo, techs repos.TechnicianRepo, jobs repos.JobRepo, routings repos.JobRoutingRepo, outboxSvc *outbox.Service) *CreateJob {
	return &CreateJob{
		db: db, log: baseLog.With("usecase", "CreateJob"),
		companies: companies, techs: techs, jobs: jobs, routings: routings, outboxSvc: outboxSvc,
	}
}

// Execute runs the ordered steps of §4.6 inside a single transaction:
// load + validate, match, insert job/routings/outbox atomically.
func (u *CreateJob) Execute(ctx context.Context, req CreateJobRequest) (*CreateJobResult, error) {
	var result *CreateJobResult

	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		requestingCompany, err := u.companies.GetByID(dbc, req.CreatedByCompanyID)
		if err != nil {
			return err
		}
		if requestingCompany == nil {
			return pkgerrors.NewValidationError("requesting company %s not found", req.CreatedByCompanyID)
		}

		tech, err := u.techs.GetByID(dbc, req.CreatedByTechnicianID)
		if err != nil {
			return err
		}
		if tech == nil || tech.CompanyID != requestingCompany.ID {
			return pkgerrors.NewValidationError("technician %s not found for company %s", req.CreatedByTechnicianID, requestingCompany.ID)
		}

		if err := validateSkills(req.RequiredSkills, req.SkillLevels); err != nil {
			return err
		}

		candidateCompanies, err := u.companies.ListActiveWithSkills(dbc)
		if err != nil {
			return err
		}

		candidates := make([]matching.Candidate, 0, len(candidateCompanies))
		for _, c := range candidateCompanies {
			candidates = append(candidates, matching.Candidate{
				CompanyID:    c.ID,
				IsActive:     c.IsActive,
				ProviderType: c.ProviderType,
				Skills:       c.Skills,
			})
		}

		requirements := matching.Requirements{
			RequiredSkills: req.RequiredSkills,
			SkillLevels:    req.SkillLevels,
			Category:       req.Category,
		}

		matches := matching.FindMatchingCompanies(requirements, candidates, 0)
		selected := make([]matching.Match, 0, len(matches))
		for _, m := range matches {
			if m.CompanyID != requestingCompany.ID {
				selected = append(selected, m)
			}
		}
		if len(selected) == 0 {
			return pkgerrors.NewValidationError(
				"No suitable companies found for job requirements. Required skills: %s, Category: %s",
				orNone(req.RequiredSkills), orNoneStr(req.Category),
			)
		}

		requiredSkillsJSON, _ := json.Marshal(req.RequiredSkills)
		skillLevelsJSON, _ := json.Marshal(req.SkillLevels)

		job := &domain.Job{
			Summary:               req.Summary,
			Street:                req.Street,
			City:                  req.City,
			State:                 req.State,
			ZipCode:               req.ZipCode,
			HomeownerName:         req.HomeownerName,
			HomeownerPhone:        req.HomeownerPhone,
			HomeownerEmail:        req.HomeownerEmail,
			CreatedByCompanyID:    requestingCompany.ID,
			CreatedByTechnicianID: tech.ID,
			RequiredSkills:        requiredSkillsJSON,
			SkillLevels:           skillLevelsJSON,
			Category:              req.Category,
			Status:                domain.JobStatusPending,
		}
		if _, err := u.jobs.Create(dbc, job); err != nil {
			return err
		}

		// One routing per returned match (SPEC_FULL.md §9 open-question
		// decision), each with its own outbox event.
		var scoreSum float64
		routingRows := make([]*domain.JobRouting, 0, len(selected))
		for _, m := range selected {
			routingRows = append(routingRows, &domain.JobRouting{
				JobID:             job.ID,
				CompanyIDReceived: m.CompanyID,
				SyncStatus:        domain.SyncStatusPending,
			})
			scoreSum += m.Score
		}
		created, err := u.routings.Create(dbc, routingRows)
		if err != nil {
			return err
		}

		for i, r := range created {
			m := selected[i]
			_, err := u.outboxSvc.CreateEvent(dbc, domain.OutboxEventTypeJobSync, r.ID.String(), map[string]interface{}{
				"routing_id":      r.ID.String(),
				"job_id":          job.ID.String(),
				"company_id":      m.CompanyID.String(),
				"matching_score":  m.Score,
				"matched_skills":  m.MatchedSkills,
				"provider_type":   providerTypeOf(candidateCompanies, m.CompanyID),
			}, 3)
			if err != nil {
				return err
			}
		}

		result = &CreateJobResult{
			Job:               job,
			Routings:          created,
			AverageMatchScore: scoreSum / float64(len(selected)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func providerTypeOf(companies []*domain.Company, id uuid.UUID) string {
	for _, c := range companies {
		if c.ID == id {
			return string(c.ProviderType)
		}
	}
	return ""
}

func validateSkills(requiredSkills []string, skillLevels map[string]domain.SkillLevel) error {
	for _, s := range requiredSkills {
		if s == "" {
			return pkgerrors.NewValidationError("required_skills must contain only nonempty strings")
		}
	}
	required := make(map[string]bool, len(requiredSkills))
	for _, s := range requiredSkills {
		required[s] = true
	}
	for skill, level := range skillLevels {
		switch level {
		case domain.SkillLevelBasic, domain.SkillLevelIntermediate, domain.SkillLevelExpert:
		default:
			return pkgerrors.NewValidationError("skill_levels[%s] must be one of basic, intermediate, expert", skill)
		}
		if !required[skill] {
			return pkgerrors.NewValidationError("skill_levels key %q must be present in required_skills", skill)
		}
	}
	return nil
}

func orNone(ss []string) string {
	if len(ss) == 0 {
		return "None"
	}
	out := ss[0]
	for _, s := range ss[1:] {
		out += ", " + s
	}
	return out
}

func orNoneStr(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
