package services

// MainStructureBuilt fires after the base server skeleton is provisioned.
type MainStructureBuilt struct {
	OrgID      string
	Categories int
	Channels   int
}

// AgencyProvisioned fires after one agency's roles, category, and channels
// exist and its row is persisted.
type AgencyProvisioned struct {
	OrgID    string
	AgencyID int64
	Name     string
	IsMain   bool
}
