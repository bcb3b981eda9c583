// Package matching is a pure, I/O-free scoring engine: it never touches
// the database or network, so it is exhaustively unit-testable.
package matching

import (
	"sort"

	"github.com/google/uuid"

	"github.com/fieldroute/jobsync/internal/domain"
)

// Requirements describes what a job needs, the input side of scoring.
type Requirements struct {
	JobID         uuid.UUID
	RequiredSkills []string
	SkillLevels    map[string]domain.SkillLevel
	Category       string
	Priority       int
}

// Candidate is a company enriched with the fields scoring needs.
type Candidate struct {
	CompanyID    uuid.UUID
	IsActive     bool
	ProviderType domain.ProviderType
	Skills       []domain.CompanySkill
}

// Match is one scored candidate.
type Match struct {
	CompanyID     uuid.UUID
	Score         float64
	MatchedSkills []string
	MissingSkills []string
}

// skillLevelScore implements §4.2 step 1's per-skill scoring: meeting or
// exceeding the requirement scores the company's value plus half the
// surplus; falling short scores half the company's value.
func skillLevelScore(required, company domain.SkillLevel) float64 {
	reqVal := domain.SkillLevelValue(required)
	compVal := domain.SkillLevelValue(company)
	if compVal >= reqVal {
		return compVal + 0.5*(compVal-reqVal)
	}
	return 0.5 * compVal
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// score computes one candidate's scalar fit per §4.2 steps 1-4.
func score(req Requirements, c Candidate) (float64, []string, []string) {
	var total float64
	var matched, missing []string

	bySkill := make(map[string]domain.CompanySkill, len(c.Skills))
	for _, s := range c.Skills {
		bySkill[s.SkillName] = s
	}

	for skillName, reqLevel := range req.SkillLevels {
		if cs, ok := bySkill[skillName]; ok {
			total += skillLevelScore(reqLevel, cs.SkillLevel)
			matched = append(matched, skillName)
		} else {
			missing = append(missing, skillName)
			if contains(req.RequiredSkills, skillName) {
				total -= 2.0
			}
		}
	}

	for _, cs := range c.Skills {
		if cs.IsPrimary && contains(req.RequiredSkills, cs.SkillName) {
			total += 1.5
		}
	}

	if c.IsActive {
		total += 0.5
	}
	if c.ProviderType != "" {
		total += 0.3
	}

	if total < 0 {
		total = 0
	}
	return total, matched, missing
}

// FindMatchingCompanies scores every candidate against req and returns
// the ranked matches, highest score first, ties broken by input order
// (stable sort). maxResults<=0 means unlimited.
func FindMatchingCompanies(req Requirements, candidates []Candidate, maxResults int) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		s, matchedSkills, missingSkills := score(req, c)
		matches = append(matches, Match{
			CompanyID:     c.CompanyID,
			Score:         s,
			MatchedSkills: matchedSkills,
			MissingSkills: missingSkills,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

// FindMatchingCompany returns the single best match for req among
// candidates, excluding requestingCompanyID, or nil if none qualify.
func FindMatchingCompany(req Requirements, candidates []Candidate, requestingCompanyID uuid.UUID) *Match {
	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.CompanyID != requestingCompanyID {
			filtered = append(filtered, c)
		}
	}
	matches := FindMatchingCompanies(req, filtered, 1)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}
