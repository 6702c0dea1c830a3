// Package services holds the collection wizard: a per-user, multi-turn state
// machine that gathers an agency structure one question at a time and
// materializes it into an action list. Sessions are process-local and lost on
// restart; they are meant to live minutes, not days.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agencyhq/warroom/internal/extract"
	"github.com/agencyhq/warroom/modules/structure/domain/action"
)

type State int

const (
	AwaitingMain State = iota + 1
	AwaitingSubs
	AwaitingHierarchy
	Ready
)

var (
	// ErrSessionExpired covers both a timed-out session and a confirm
	// arriving with no session at all; the user restarts either way.
	ErrSessionExpired = errors.New("wizard: session expired")
	ErrNotReady       = errors.New("wizard: session is not ready to build")
)

const (
	promptMain      = "🏗️ **Agency Builder Wizard**\nLet's set up your server! I'll ask you a few questions.\n\n**Step 1: What is the MAIN agency name?** (The top-level agency everyone can see)"
	promptSubs      = "**Step 2: List all SUB-AGENCIES** (Comma separated or natural language)"
	promptHierarchy = "**Step 3: Any agencies under THOSE agencies?** (e.g., Team A -> The Vault). Type \"none\" if finished."

	mainAgencyEmoji = "🦁"
	subAgencyEmoji  = "💎"
)

type Session struct {
	UserID      string
	OrgID       string
	State       State
	MainAgency  string
	SubAgencies []string
	Hierarchy   []extract.HierarchyPair
	expiresAt   time.Time
}

// Turn is the wizard's reply to one user message.
type Turn struct {
	Reply   string
	Ready   bool
	Session Session
}

// Registry owns every live wizard session, keyed by user id. Expiry is
// enforced lazily on access plus a periodic sweep; each successful turn
// re-arms the timeout.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	extractor extract.Extractor
	ttl       time.Duration
	log       *logrus.Logger
	now       func() time.Time
}

func NewRegistry(extractor extract.Extractor, ttl time.Duration, log *logrus.Logger) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		extractor: extractor,
		ttl:       ttl,
		log:       log,
		now:       time.Now,
	}
}

// Start opens a session for the user and returns the first prompt. A second
// Start by the same user silently replaces the first session: last write
// wins, logged at warn level.
func (r *Registry) Start(orgID, userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[userID]; ok {
		r.log.WithField("user_id", userID).Warn("wizard: replacing in-flight session")
	}
	r.sessions[userID] = &Session{
		UserID:    userID,
		OrgID:     orgID,
		State:     AwaitingMain,
		expiresAt: r.now().Add(r.ttl),
	}
	return promptMain
}

func (r *Registry) get(userID string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok {
		return Session{}, ErrSessionExpired
	}
	if r.now().After(s.expiresAt) {
		delete(r.sessions, userID)
		return Session{}, ErrSessionExpired
	}
	return *s, nil
}

func (r *Registry) put(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.expiresAt = r.now().Add(r.ttl)
	r.sessions[s.UserID] = &s
}

// HandleTurn feeds one user message into the session's current step. The raw
// text goes to the extraction service verbatim; the returned value is stored
// without validation. A parse failure leaves the step unchanged and surfaces
// extract.ErrUnparsable.
func (r *Registry) HandleTurn(ctx context.Context, userID, text string) (*Turn, error) {
	s, err := r.get(userID)
	if err != nil {
		return nil, err
	}

	switch s.State {
	case AwaitingMain:
		name, err := r.extractor.MainAgencyName(ctx, text)
		if err != nil {
			return nil, err
		}
		s.MainAgency = name
		s.State = AwaitingSubs
		r.put(s)
		return &Turn{
			Reply:   fmt.Sprintf("✅ Main Agency: **%s**\n\n%s", name, promptSubs),
			Session: s,
		}, nil

	case AwaitingSubs:
		subs, err := r.extractor.SubAgencyNames(ctx, text)
		if err != nil {
			return nil, err
		}
		s.SubAgencies = subs
		s.State = AwaitingHierarchy
		r.put(s)
		return &Turn{
			Reply:   fmt.Sprintf("✅ Sub-Agencies: %s\n\n%s", strings.Join(subs, ", "), promptHierarchy),
			Session: s,
		}, nil

	case AwaitingHierarchy:
		if !strings.EqualFold(strings.TrimSpace(text), "none") {
			pairs, err := r.extractor.HierarchyPairs(ctx, text)
			if err != nil {
				return nil, err
			}
			s.Hierarchy = pairs
		}
		s.State = Ready
		r.put(s)
		return &Turn{
			Reply: fmt.Sprintf("**Main Agency:** %s\n**Sub-Agencies:** %s\n**Hierarchy:** %d mappings",
				s.MainAgency, strings.Join(s.SubAgencies, ", "), len(s.Hierarchy)),
			Ready:   true,
			Session: s,
		}, nil

	default:
		return &Turn{Reply: "Session is ready. Build or cancel to continue.", Ready: true, Session: s}, nil
	}
}

// Materialize converts a Ready session into its action list. The session
// survives until Complete or Cancel so a failed build can be retried.
func (r *Registry) Materialize(userID string) ([]action.Action, error) {
	s, err := r.get(userID)
	if err != nil {
		return nil, err
	}
	if s.State != Ready {
		return nil, ErrNotReady
	}

	list := []action.Action{
		action.BuildMainStructure{},
		action.InitializeAgencies{Agencies: []action.AgencySpec{
			{Name: s.MainAgency, Emoji: mainAgencyEmoji, IsMain: true},
		}},
	}
	if len(s.SubAgencies) > 0 {
		specs := make([]action.AgencySpec, 0, len(s.SubAgencies))
		for _, name := range s.SubAgencies {
			specs = append(specs, action.AgencySpec{Name: name, Emoji: subAgencyEmoji})
		}
		list = append(list, action.InitializeAgencies{Agencies: specs})
	}
	for _, pair := range s.Hierarchy {
		list = append(list, action.MapEdge{DownlineName: pair.Downline, UplineName: pair.Upline})
	}
	return list, nil
}

// Complete destroys the session after a successful build.
func (r *Registry) Complete(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Cancel discards the session. Cancelling a missing session is a no-op.
func (r *Registry) Cancel(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Sweep drops expired sessions and reports how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for userID, s := range r.sessions {
		if now.After(s.expiresAt) {
			delete(r.sessions, userID)
			removed++
		}
	}
	return removed
}

// Run sweeps on the given interval until the context is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.WithField("expired", n).Info("wizard: swept expired sessions")
			}
		}
	}
}
