package matching

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldroute/jobsync/internal/domain"
)

func baseCandidate(level domain.SkillLevel, primary bool) Candidate {
	return Candidate{
		CompanyID:    uuid.New(),
		IsActive:     true,
		ProviderType: domain.ProviderTypeMock,
		Skills: []domain.CompanySkill{
			{SkillName: "plumbing", SkillLevel: level, IsPrimary: primary},
		},
	}
}

func plumbingRequirements() Requirements {
	return Requirements{
		JobID:          uuid.New(),
		RequiredSkills: []string{"plumbing"},
		SkillLevels:    map[string]domain.SkillLevel{"plumbing": domain.SkillLevelExpert},
	}
}

func TestFindMatchingCompanies_Determinism(t *testing.T) {
	req := plumbingRequirements()
	candidates := []Candidate{
		baseCandidate(domain.SkillLevelExpert, true),
		baseCandidate(domain.SkillLevelBasic, false),
	}

	first := FindMatchingCompanies(req, candidates, 0)
	second := FindMatchingCompanies(req, candidates, 0)
	require.Equal(t, first, second)
}

func TestFindMatchingCompanies_HigherLevelNeverScoresLower(t *testing.T) {
	req := plumbingRequirements()

	basic := FindMatchingCompanies(req, []Candidate{baseCandidate(domain.SkillLevelBasic, false)}, 0)
	intermediate := FindMatchingCompanies(req, []Candidate{baseCandidate(domain.SkillLevelIntermediate, false)}, 0)
	expert := FindMatchingCompanies(req, []Candidate{baseCandidate(domain.SkillLevelExpert, false)}, 0)

	require.LessOrEqual(t, basic[0].Score, intermediate[0].Score)
	require.LessOrEqual(t, intermediate[0].Score, expert[0].Score)
}

func TestFindMatchingCompanies_MissingRequiredSkillIsPenalized(t *testing.T) {
	req := plumbingRequirements()

	withSkill := FindMatchingCompanies(req, []Candidate{baseCandidate(domain.SkillLevelBasic, false)}, 0)
	without := Candidate{CompanyID: uuid.New(), IsActive: true, ProviderType: domain.ProviderTypeMock}
	withoutSkill := FindMatchingCompanies(req, []Candidate{without}, 0)

	require.Less(t, withoutSkill[0].Score, withSkill[0].Score)
	require.Contains(t, withoutSkill[0].MissingSkills, "plumbing")
}

func TestFindMatchingCompanies_PrimaryBonus(t *testing.T) {
	req := plumbingRequirements()

	primary := FindMatchingCompanies(req, []Candidate{baseCandidate(domain.SkillLevelExpert, true)}, 0)
	nonPrimary := FindMatchingCompanies(req, []Candidate{baseCandidate(domain.SkillLevelExpert, false)}, 0)

	require.Greater(t, primary[0].Score, nonPrimary[0].Score)
}

func TestFindMatchingCompany_ExcludesRequestingCompany(t *testing.T) {
	req := plumbingRequirements()
	requester := baseCandidate(domain.SkillLevelExpert, true)
	other := baseCandidate(domain.SkillLevelBasic, false)

	best := FindMatchingCompany(req, []Candidate{requester, other}, requester.CompanyID)
	require.NotNil(t, best)
	require.Equal(t, other.CompanyID, best.CompanyID)
}

func TestFindMatchingCompany_NoCandidates(t *testing.T) {
	req := plumbingRequirements()
	best := FindMatchingCompany(req, nil, uuid.New())
	require.Nil(t, best)
}

func TestFindMatchingCompanies_ScoreNeverNegative(t *testing.T) {
	req := Requirements{
		RequiredSkills: []string{"plumbing", "electrical", "carpentry"},
		SkillLevels: map[string]domain.SkillLevel{
			"plumbing":   domain.SkillLevelExpert,
			"electrical": domain.SkillLevelExpert,
			"carpentry":  domain.SkillLevelExpert,
		},
	}
	empty := Candidate{CompanyID: uuid.New(), IsActive: false}
	matches := FindMatchingCompanies(req, []Candidate{empty}, 0)
	require.GreaterOrEqual(t, matches[0].Score, 0.0)
}
