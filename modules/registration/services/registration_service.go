// Package services covers member registration: leader access codes, agent
// name mappings, onboarding role handoff, and badge sync.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agencyhq/warroom/internal/workspace"
	"github.com/agencyhq/warroom/modules/hierarchy/domain/agency"
	"github.com/agencyhq/warroom/pkg/composables"
	"github.com/agencyhq/warroom/pkg/eventbus"
	"github.com/agencyhq/warroom/pkg/serrors"
)

var ErrNotFound = errors.New("registration: not found")

type LeaderCode struct {
	OrgID        string
	Code         string
	LeaderRoleID string
	AgencyRoleID string
	Description  string
}

type AgentMapping struct {
	OrgID     string
	UserID    string
	AgentName string
	Badges    string
}

type Onboarding struct {
	OrgID     string
	UserID    string
	RoleID    string
	CreatedAt time.Time
}

// AgentRegistered fires after a registration modal is processed.
type AgentRegistered struct {
	OrgID     string
	UserID    string
	AgentName string
	RoleID    string
}

type RegistrationRepository interface {
	InsertLeaderCode(ctx context.Context, lc LeaderCode) error
	LeaderCodes(ctx context.Context, orgID string) ([]LeaderCode, error)
	LeaderCode(ctx context.Context, orgID, code string) (*LeaderCode, error)
	DeleteLeaderCode(ctx context.Context, orgID, code string) error

	UpsertAgentMapping(ctx context.Context, m AgentMapping) error
	AgentMappingByName(ctx context.Context, orgID, agentName string) (*AgentMapping, error)
	UpdateAgentBadges(ctx context.Context, orgID, userID, badges string) error

	InsertOnboarding(ctx context.Context, o Onboarding) error
}

// ConfigStore is the slice of the org config this module reads.
type ConfigStore interface {
	Config(ctx context.Context, orgID string) (*agency.Config, error)
}

type RegistrationService struct {
	repo   RegistrationRepository
	config ConfigStore
	ws     workspace.Client
	bus    eventbus.EventBus
	log    *logrus.Logger
}

func NewRegistrationService(repo RegistrationRepository, config ConfigStore, ws workspace.Client, bus eventbus.EventBus, log *logrus.Logger) *RegistrationService {
	return &RegistrationService{repo: repo, config: config, ws: ws, bus: bus, log: log}
}

func (s *RegistrationService) AddLeaderCode(ctx context.Context, lc LeaderCode) error {
	lc.Code = strings.TrimSpace(lc.Code)
	if lc.Code == "" || lc.LeaderRoleID == "" {
		return serrors.New(400, "REG_INVALID_CODE", "code and leader role are required", nil)
	}
	if err := s.repo.InsertLeaderCode(ctx, lc); err != nil {
		return serrors.New(500, "REG_PERSIST", "failed to store leader code", err)
	}
	return nil
}

func (s *RegistrationService) LeaderCodes(ctx context.Context, orgID string) ([]LeaderCode, error) {
	return s.repo.LeaderCodes(ctx, orgID)
}

func (s *RegistrationService) RemoveLeaderCode(ctx context.Context, orgID, code string) error {
	if err := s.repo.DeleteLeaderCode(ctx, orgID, code); err != nil {
		return serrors.New(500, "REG_PERSIST", "failed to remove leader code", err)
	}
	return nil
}

// RedeemLeaderCode grants the code's roles to the member. An unknown code is
// a 404, not an internal error.
func (s *RegistrationService) RedeemLeaderCode(ctx context.Context, orgID, userID, code string) (*LeaderCode, error) {
	lc, err := s.repo.LeaderCode(ctx, orgID, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, serrors.New(404, "REG_CODE_NOT_FOUND", "invalid access code", err)
		}
		return nil, serrors.New(500, "REG_LOOKUP", "failed to look up access code", err)
	}

	if err := s.ws.AddMemberRole(ctx, orgID, userID, lc.LeaderRoleID); err != nil {
		return nil, serrors.New(502, "REG_ROLE_ADD", "failed to grant leader role", err)
	}
	if lc.AgencyRoleID != "" {
		if err := s.ws.AddMemberRole(ctx, orgID, userID, lc.AgencyRoleID); err != nil {
			return nil, serrors.New(502, "REG_ROLE_ADD", "failed to grant agency role", err)
		}
	}
	return lc, nil
}

// RegisterAgent records the user's agent name and, when the registration came
// through the onboarding portal (roleID set), performs the role handoff:
// grant the selected agency role, drop the unassigned role, log the
// onboarding. Role mutations are best effort; the mapping write is not.
func (s *RegistrationService) RegisterAgent(ctx context.Context, orgID, userID, agentName, roleID string) error {
	agentName = strings.TrimSpace(agentName)
	if agentName == "" {
		return serrors.New(400, "REG_INVALID_NAME", "agent name is required", nil)
	}

	if roleID != "" {
		if err := s.ws.AddMemberRole(ctx, orgID, userID, roleID); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("registration: role grant failed")
		}
		if cfg, err := s.config.Config(ctx, orgID); err == nil && cfg.UnassignedRoleID != "" {
			if err := s.ws.RemoveMemberRole(ctx, orgID, userID, cfg.UnassignedRoleID); err != nil {
				s.log.WithError(err).WithField("user_id", userID).Debug("registration: unassigned role removal failed")
			}
		}
	}

	err := composables.InTx(ctx, func(txCtx context.Context) error {
		if roleID != "" {
			if err := s.repo.InsertOnboarding(txCtx, Onboarding{OrgID: orgID, UserID: userID, RoleID: roleID}); err != nil {
				return err
			}
		}
		return s.repo.UpsertAgentMapping(txCtx, AgentMapping{OrgID: orgID, UserID: userID, AgentName: agentName})
	})
	if err != nil {
		return serrors.New(500, "REG_PERSIST", "failed to store agent mapping", err)
	}

	s.bus.Publish(AgentRegistered{OrgID: orgID, UserID: userID, AgentName: agentName, RoleID: roleID})
	return nil
}

// OnJoin hands the configured unassigned role to a newly joined member.
func (s *RegistrationService) OnJoin(ctx context.Context, orgID, userID string) {
	cfg, err := s.config.Config(ctx, orgID)
	if err != nil || cfg.UnassignedRoleID == "" {
		return
	}
	if err := s.ws.AddMemberRole(ctx, orgID, userID, cfg.UnassignedRoleID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("registration: unassigned role grant failed")
	}
}

// SyncBadges updates a member's display name to "<agentName> <glyphs>" and
// persists the badge string. The nickname is applied only when the member is
// manageable; the badge string persists either way.
func (s *RegistrationService) SyncBadges(ctx context.Context, orgID, agentName, badges string) error {
	mapping, err := s.repo.AgentMappingByName(ctx, orgID, agentName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return serrors.New(404, "REG_AGENT_NOT_FOUND", "agent not found", err)
		}
		return serrors.New(500, "REG_LOOKUP", "failed to look up agent mapping", err)
	}

	member, err := s.ws.Member(ctx, orgID, mapping.UserID)
	if err != nil {
		return serrors.New(502, "REG_MEMBER_FETCH", "failed to fetch member", err)
	}

	nickname := truncateRunes(strings.TrimSpace(agentName+" "+badges), workspace.NicknameMaxLength)
	if member.Manageable {
		if err := s.ws.SetNickname(ctx, orgID, mapping.UserID, nickname); err != nil {
			return serrors.New(502, "REG_NICKNAME", "failed to set nickname", err)
		}
	}

	if err := s.repo.UpdateAgentBadges(ctx, orgID, mapping.UserID, badges); err != nil {
		return serrors.New(500, "REG_PERSIST", "failed to store badges", err)
	}
	return nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
