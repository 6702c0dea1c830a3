// Package agency holds the persisted records of the hierarchy graph store.
package agency

// Agency is a named unit within an organization, backed by one role pair and
// one provisioned category. Rows are created by provisioning and mutated only
// to flip IsMain; deletion happens through an external wipe, never here.
type Agency struct {
	ID           int64
	OrgID        string
	Name         string
	Emoji        string
	AgentRoleID  string
	LeaderRoleID string
	CategoryID   string
	IsMain       bool
}

// Edge is one downline→upline hierarchy relation. Duplicate inserts are
// deduplicated by the store.
type Edge struct {
	OrgID      string
	DownlineID int64
	UplineID   int64
}

// Config is the per-organization singleton. Upserted, never duplicated.
type Config struct {
	OrgID               string
	OrgName             string
	StartHereCategoryID string
	MainAgencyID        *int64
	UnassignedRoleID    string
	OwnerUserID         string
}
