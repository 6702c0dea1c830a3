package testkit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agencyhq/warroom/modules/registration/services"
)

type mappingKey struct {
	orgID  string
	userID string
}

type codeKey struct {
	orgID string
	code  string
}

// InMemoryRegistrationRepo implements services.RegistrationRepository.
type InMemoryRegistrationRepo struct {
	mu          sync.Mutex
	codes       map[codeKey]services.LeaderCode
	mappings    map[mappingKey]services.AgentMapping
	Onboardings []services.Onboarding
}

func NewInMemoryRegistrationRepo() *InMemoryRegistrationRepo {
	return &InMemoryRegistrationRepo{
		codes:    make(map[codeKey]services.LeaderCode),
		mappings: make(map[mappingKey]services.AgentMapping),
	}
}

// Mapping reports the stored mapping for a user, for test assertions.
func (r *InMemoryRegistrationRepo) Mapping(orgID, userID string) (services.AgentMapping, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mappings[mappingKey{orgID: orgID, userID: userID}]
	return m, ok
}

func (r *InMemoryRegistrationRepo) InsertLeaderCode(_ context.Context, lc services.LeaderCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[codeKey{orgID: lc.OrgID, code: lc.Code}] = lc
	return nil
}

func (r *InMemoryRegistrationRepo) LeaderCodes(_ context.Context, orgID string) ([]services.LeaderCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]services.LeaderCode, 0, len(r.codes))
	for key, lc := range r.codes {
		if key.orgID == orgID {
			out = append(out, lc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *InMemoryRegistrationRepo) LeaderCode(_ context.Context, orgID, code string) (*services.LeaderCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lc, ok := r.codes[codeKey{orgID: orgID, code: code}]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &lc, nil
}

func (r *InMemoryRegistrationRepo) DeleteLeaderCode(_ context.Context, orgID, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, codeKey{orgID: orgID, code: code})
	return nil
}

func (r *InMemoryRegistrationRepo) UpsertAgentMapping(_ context.Context, m services.AgentMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := mappingKey{orgID: m.OrgID, userID: m.UserID}
	if existing, ok := r.mappings[key]; ok {
		existing.AgentName = m.AgentName
		r.mappings[key] = existing
		return nil
	}
	r.mappings[key] = m
	return nil
}

func (r *InMemoryRegistrationRepo) AgentMappingByName(_ context.Context, orgID, agentName string) (*services.AgentMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, m := range r.mappings {
		if key.orgID == orgID && strings.EqualFold(m.AgentName, agentName) {
			m := m
			return &m, nil
		}
	}
	return nil, services.ErrNotFound
}

func (r *InMemoryRegistrationRepo) UpdateAgentBadges(_ context.Context, orgID, userID, badges string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := mappingKey{orgID: orgID, userID: userID}
	m, ok := r.mappings[key]
	if !ok {
		return services.ErrNotFound
	}
	m.Badges = badges
	r.mappings[key] = m
	return nil
}

func (r *InMemoryRegistrationRepo) InsertOnboarding(_ context.Context, o services.Onboarding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.CreatedAt = time.Now()
	r.Onboardings = append(r.Onboardings, o)
	return nil
}

var _ services.RegistrationRepository = (*InMemoryRegistrationRepo)(nil)
