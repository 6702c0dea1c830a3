package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/agencyhq/warroom/modules/registration/services"
	"github.com/agencyhq/warroom/pkg/composables"
)

type RegistrationRepository struct{}

func NewRegistrationRepository() *RegistrationRepository {
	return &RegistrationRepository{}
}

func (r *RegistrationRepository) InsertLeaderCode(ctx context.Context, lc services.LeaderCode) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO leader_codes (org_id, code, leader_role_id, agency_role_id, description)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (org_id, code) DO UPDATE SET
	leader_role_id = EXCLUDED.leader_role_id,
	agency_role_id = EXCLUDED.agency_role_id,
	description = EXCLUDED.description
`, lc.OrgID, lc.Code, lc.LeaderRoleID, lc.AgencyRoleID, lc.Description)
	return errors.Wrap(err, "failed to upsert leader code")
}

func (r *RegistrationRepository) LeaderCodes(ctx context.Context, orgID string) ([]services.LeaderCode, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT org_id, code, leader_role_id, agency_role_id, description
FROM leader_codes
WHERE org_id = $1
ORDER BY code ASC
`, orgID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list leader codes")
	}
	defer rows.Close()

	out := make([]services.LeaderCode, 0, 8)
	for rows.Next() {
		var lc services.LeaderCode
		if err := rows.Scan(&lc.OrgID, &lc.Code, &lc.LeaderRoleID, &lc.AgencyRoleID, &lc.Description); err != nil {
			return nil, errors.Wrap(err, "failed to scan leader code row")
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

func (r *RegistrationRepository) LeaderCode(ctx context.Context, orgID, code string) (*services.LeaderCode, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var lc services.LeaderCode
	err = tx.QueryRow(ctx, `
SELECT org_id, code, leader_role_id, agency_role_id, description
FROM leader_codes
WHERE org_id = $1 AND code = $2
`, orgID, code).Scan(&lc.OrgID, &lc.Code, &lc.LeaderRoleID, &lc.AgencyRoleID, &lc.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lc, nil
}

func (r *RegistrationRepository) DeleteLeaderCode(ctx context.Context, orgID, code string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM leader_codes WHERE org_id = $1 AND code = $2`, orgID, code)
	return errors.Wrap(err, "failed to delete leader code")
}

func (r *RegistrationRepository) UpsertAgentMapping(ctx context.Context, m services.AgentMapping) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO agent_mappings (org_id, user_id, agent_name, badges)
VALUES ($1, $2, $3, $4)
ON CONFLICT (org_id, user_id) DO UPDATE SET
	agent_name = EXCLUDED.agent_name
`, m.OrgID, m.UserID, m.AgentName, m.Badges)
	return errors.Wrap(err, "failed to upsert agent mapping")
}

func (r *RegistrationRepository) AgentMappingByName(ctx context.Context, orgID, agentName string) (*services.AgentMapping, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var m services.AgentMapping
	err = tx.QueryRow(ctx, `
SELECT org_id, user_id, agent_name, badges
FROM agent_mappings
WHERE org_id = $1 AND lower(agent_name) = lower($2)
`, orgID, agentName).Scan(&m.OrgID, &m.UserID, &m.AgentName, &m.Badges)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *RegistrationRepository) UpdateAgentBadges(ctx context.Context, orgID, userID, badges string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE agent_mappings SET badges = $3 WHERE org_id = $1 AND user_id = $2
`, orgID, userID, badges)
	if err != nil {
		return errors.Wrap(err, "failed to update badges")
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (r *RegistrationRepository) InsertOnboarding(ctx context.Context, o services.Onboarding) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO onboardings (org_id, user_id, role_id)
VALUES ($1, $2, $3)
`, o.OrgID, o.UserID, o.RoleID)
	return errors.Wrap(err, "failed to insert onboarding")
}

var _ services.RegistrationRepository = (*RegistrationRepository)(nil)
