// Package action defines the closed set of structural mutation commands the
// interpreter executes. The set is sealed: only types in this package satisfy
// Action, so the interpreter can match every kind it knows about and treat
// anything else as a programming error.
package action

// AgencySpec describes one agency to provision.
type AgencySpec struct {
	Name   string
	Emoji  string
	IsMain bool
}

type Action interface {
	isAction()
	// Kind returns the wire tag for the action, as produced by the
	// extraction service and used in execution reports.
	Kind() string
}

// Wipe deletes every container in the organization except the channel the
// command originated from. Best effort by contract.
type Wipe struct{}

// BuildMainStructure provisions the fixed main server skeleton.
type BuildMainStructure struct{}

// InitializeAgencies provisions roles, a category, and channels for each spec.
type InitializeAgencies struct {
	Agencies []AgencySpec
}

// MapEdge records a downline→upline hierarchy edge by agency name. Names are
// resolved to ids at execution time; the producer only has names.
type MapEdge struct {
	DownlineName string
	UplineName   string
}

// DeployOnboarding produces the agency list and role-id mapping consumed by
// the external onboarding selection surface.
type DeployOnboarding struct{}

func (Wipe) isAction()               {}
func (BuildMainStructure) isAction() {}
func (InitializeAgencies) isAction() {}
func (MapEdge) isAction()            {}
func (DeployOnboarding) isAction()   {}

func (Wipe) Kind() string               { return "WIPE" }
func (BuildMainStructure) Kind() string { return "CREATE_MAIN_STRUCTURE" }
func (InitializeAgencies) Kind() string { return "INITIALIZE" }
func (MapEdge) Kind() string            { return "MAP" }
func (DeployOnboarding) Kind() string   { return "DEPLOY_ONBOARDING" }
