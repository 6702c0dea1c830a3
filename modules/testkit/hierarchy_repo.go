package testkit

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/agencyhq/warroom/modules/hierarchy/domain/agency"
	"github.com/agencyhq/warroom/modules/hierarchy/services"
)

type edgeKey struct {
	orgID      string
	downlineID int64
	uplineID   int64
}

// InMemoryHierarchyRepo implements services.HierarchyRepository over maps.
type InMemoryHierarchyRepo struct {
	mu       sync.Mutex
	nextID   int64
	agencies map[int64]agency.Agency
	edges    map[edgeKey]struct{}
	configs  map[string]agency.Config
}

func NewInMemoryHierarchyRepo() *InMemoryHierarchyRepo {
	return &InMemoryHierarchyRepo{
		agencies: make(map[int64]agency.Agency),
		edges:    make(map[edgeKey]struct{}),
		configs:  make(map[string]agency.Config),
	}
}

// EdgeCount reports the number of stored edges, for idempotency assertions.
func (r *InMemoryHierarchyRepo) EdgeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.edges)
}

func (r *InMemoryHierarchyRepo) InsertAgency(_ context.Context, a agency.Agency) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.agencies {
		if existing.OrgID == a.OrgID && strings.EqualFold(existing.Name, a.Name) {
			a.ID = id
			r.agencies[id] = a
			return id, nil
		}
	}
	r.nextID++
	a.ID = r.nextID
	r.agencies[a.ID] = a
	return a.ID, nil
}

func (r *InMemoryHierarchyRepo) AgencyByID(_ context.Context, orgID string, id int64) (*agency.Agency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agencies[id]
	if !ok || a.OrgID != orgID {
		return nil, services.ErrNotFound
	}
	return &a, nil
}

func (r *InMemoryHierarchyRepo) AgencyByName(_ context.Context, orgID, name string) (*agency.Agency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.agencies {
		if a.OrgID == orgID && strings.EqualFold(a.Name, name) {
			a := a
			return &a, nil
		}
	}

	var match *agency.Agency
	for _, a := range r.agencies {
		if a.OrgID != orgID {
			continue
		}
		if strings.Contains(strings.ToLower(a.Name), strings.ToLower(name)) {
			a := a
			if match == nil || len(a.Name) < len(match.Name) {
				match = &a
			}
		}
	}
	if match == nil {
		return nil, services.ErrNotFound
	}
	return match, nil
}

func (r *InMemoryHierarchyRepo) Agencies(_ context.Context, orgID string) ([]agency.Agency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]agency.Agency, 0, len(r.agencies))
	for _, a := range r.agencies {
		if a.OrgID == orgID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsMain != out[j].IsMain {
			return out[i].IsMain
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *InMemoryHierarchyRepo) SetMainAgency(_ context.Context, orgID string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.agencies[id]; !ok || a.OrgID != orgID {
		return services.ErrNotFound
	}
	for aid, a := range r.agencies {
		if a.OrgID != orgID {
			continue
		}
		a.IsMain = aid == id
		r.agencies[aid] = a
	}
	return nil
}

func (r *InMemoryHierarchyRepo) InsertEdge(_ context.Context, e agency.Edge) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := edgeKey{orgID: e.OrgID, downlineID: e.DownlineID, uplineID: e.UplineID}
	if _, ok := r.edges[key]; ok {
		return false, nil
	}
	r.edges[key] = struct{}{}
	return true, nil
}

func (r *InMemoryHierarchyRepo) AncestorsOf(_ context.Context, orgID string, agencyID int64) ([]agency.Agency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Visited set guards against cycles, mirroring the CTE's UNION dedup.
	visited := map[int64]bool{agencyID: true}
	frontier := []int64{agencyID}
	var found []int64
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for key := range r.edges {
			if key.orgID != orgID || key.downlineID != current {
				continue
			}
			if visited[key.uplineID] {
				continue
			}
			visited[key.uplineID] = true
			found = append(found, key.uplineID)
			frontier = append(frontier, key.uplineID)
		}
	}

	out := make([]agency.Agency, 0, len(found))
	for _, id := range found {
		if a, ok := r.agencies[id]; ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InMemoryHierarchyRepo) SetStartHere(_ context.Context, orgID, orgName, categoryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.configs[orgID]
	c.OrgID = orgID
	c.OrgName = orgName
	c.StartHereCategoryID = categoryID
	r.configs[orgID] = c
	return nil
}

func (r *InMemoryHierarchyRepo) SetMainAgencyPointer(_ context.Context, orgID string, agencyID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.configs[orgID]
	c.OrgID = orgID
	c.MainAgencyID = &agencyID
	r.configs[orgID] = c
	return nil
}

func (r *InMemoryHierarchyRepo) SetOrgSettings(_ context.Context, orgID, orgName, unassignedRoleID, ownerUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.configs[orgID]
	c.OrgID = orgID
	c.OrgName = orgName
	c.UnassignedRoleID = unassignedRoleID
	c.OwnerUserID = ownerUserID
	r.configs[orgID] = c
	return nil
}

func (r *InMemoryHierarchyRepo) Config(_ context.Context, orgID string) (*agency.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.configs[orgID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &c, nil
}

var _ services.HierarchyRepository = (*InMemoryHierarchyRepo)(nil)
