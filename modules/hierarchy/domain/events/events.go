// Package events defines the hierarchy module's published event payloads.
package events

// EdgeMapped fires after a downline→upline edge is recorded, whether or not
// the permission cascade on the downline category succeeded.
type EdgeMapped struct {
	OrgID        string
	DownlineID   int64
	UplineID     int64
	DownlineName string
	UplineName   string
	Inserted     bool
}
