package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/agencyhq/warroom/modules/hierarchy/domain/agency"
	"github.com/agencyhq/warroom/modules/hierarchy/services"
	"github.com/agencyhq/warroom/pkg/composables"
)

type HierarchyRepository struct{}

func NewHierarchyRepository() *HierarchyRepository {
	return &HierarchyRepository{}
}

const agencyColumns = `id, org_id, name, emoji, agent_role_id, leader_role_id, category_id, is_main`

func scanAgency(row pgx.Row, a *agency.Agency) error {
	err := row.Scan(&a.ID, &a.OrgID, &a.Name, &a.Emoji, &a.AgentRoleID, &a.LeaderRoleID, &a.CategoryID, &a.IsMain)
	if errors.Is(err, pgx.ErrNoRows) {
		return services.ErrNotFound
	}
	return err
}

func (r *HierarchyRepository) InsertAgency(ctx context.Context, a agency.Agency) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow(ctx, `
INSERT INTO agencies (org_id, name, emoji, agent_role_id, leader_role_id, category_id, is_main)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (org_id, lower(name)) DO UPDATE SET
	emoji = EXCLUDED.emoji,
	agent_role_id = EXCLUDED.agent_role_id,
	leader_role_id = EXCLUDED.leader_role_id,
	category_id = EXCLUDED.category_id,
	is_main = EXCLUDED.is_main
RETURNING id
`, a.OrgID, a.Name, a.Emoji, a.AgentRoleID, a.LeaderRoleID, a.CategoryID, a.IsMain).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "failed to upsert agency")
	}
	return id, nil
}

func (r *HierarchyRepository) AgencyByID(ctx context.Context, orgID string, id int64) (*agency.Agency, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var a agency.Agency
	row := tx.QueryRow(ctx, `
SELECT `+agencyColumns+`
FROM agencies
WHERE org_id = $1 AND id = $2
`, orgID, id)
	if err := scanAgency(row, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *HierarchyRepository) AgencyByName(ctx context.Context, orgID, name string) (*agency.Agency, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var a agency.Agency
	row := tx.QueryRow(ctx, `
SELECT `+agencyColumns+`
FROM agencies
WHERE org_id = $1 AND lower(name) = lower($2)
`, orgID, name)
	err = scanAgency(row, &a)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}

	// Extracted names are loose; fall back to a substring match before
	// giving up. Shortest name first so "Alpha" beats "Alpha Legacy".
	row = tx.QueryRow(ctx, `
SELECT `+agencyColumns+`
FROM agencies
WHERE org_id = $1 AND name ILIKE '%' || $2 || '%'
ORDER BY length(name) ASC, name ASC
LIMIT 1
`, orgID, name)
	if err := scanAgency(row, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *HierarchyRepository) Agencies(ctx context.Context, orgID string) ([]agency.Agency, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT `+agencyColumns+`
FROM agencies
WHERE org_id = $1
ORDER BY is_main DESC, name ASC
`, orgID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list agencies")
	}
	defer rows.Close()

	out := make([]agency.Agency, 0, 16)
	for rows.Next() {
		var a agency.Agency
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Name, &a.Emoji, &a.AgentRoleID, &a.LeaderRoleID, &a.CategoryID, &a.IsMain); err != nil {
			return nil, errors.Wrap(err, "failed to scan agency row")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *HierarchyRepository) SetMainAgency(ctx context.Context, orgID string, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE agencies SET is_main = false WHERE org_id = $1 AND id <> $2`, orgID, id); err != nil {
		return errors.Wrap(err, "failed to clear main flags")
	}
	tag, err := tx.Exec(ctx, `UPDATE agencies SET is_main = true WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return errors.Wrap(err, "failed to set main agency")
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (r *HierarchyRepository) InsertEdge(ctx context.Context, e agency.Edge) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO hierarchy_edges (org_id, downline_id, upline_id)
VALUES ($1, $2, $3)
ON CONFLICT (org_id, downline_id, upline_id) DO NOTHING
`, e.OrgID, e.DownlineID, e.UplineID)
	if err != nil {
		return false, errors.Wrap(err, "failed to insert edge")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *HierarchyRepository) AncestorsOf(ctx context.Context, orgID string, agencyID int64) ([]agency.Agency, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	// UNION (not UNION ALL) deduplicates rows, which both collapses diamond
	// paths and terminates the recursion if the stored graph has a cycle.
	rows, err := tx.Query(ctx, `
WITH RECURSIVE ancestors AS (
	SELECT upline_id
	FROM hierarchy_edges
	WHERE org_id = $1 AND downline_id = $2
	UNION
	SELECT e.upline_id
	FROM hierarchy_edges e
	JOIN ancestors a ON e.downline_id = a.upline_id
	WHERE e.org_id = $1
)
SELECT `+agencyColumns+`
FROM agencies ag
JOIN ancestors a ON a.upline_id = ag.id
WHERE ag.id <> $2
ORDER BY ag.name ASC
`, orgID, agencyID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to walk ancestors")
	}
	defer rows.Close()

	out := make([]agency.Agency, 0, 8)
	for rows.Next() {
		var a agency.Agency
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Name, &a.Emoji, &a.AgentRoleID, &a.LeaderRoleID, &a.CategoryID, &a.IsMain); err != nil {
			return nil, errors.Wrap(err, "failed to scan agency row")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *HierarchyRepository) SetStartHere(ctx context.Context, orgID, orgName, categoryID string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO org_config (org_id, org_name, start_here_category_id)
VALUES ($1, $2, $3)
ON CONFLICT (org_id) DO UPDATE SET
	org_name = EXCLUDED.org_name,
	start_here_category_id = EXCLUDED.start_here_category_id,
	updated_at = now()
`, orgID, orgName, categoryID)
	return errors.Wrap(err, "failed to record start-here category")
}

func (r *HierarchyRepository) SetMainAgencyPointer(ctx context.Context, orgID string, agencyID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO org_config (org_id, main_agency_id)
VALUES ($1, $2)
ON CONFLICT (org_id) DO UPDATE SET
	main_agency_id = EXCLUDED.main_agency_id,
	updated_at = now()
`, orgID, agencyID)
	return errors.Wrap(err, "failed to record main agency pointer")
}

func (r *HierarchyRepository) SetOrgSettings(ctx context.Context, orgID, orgName, unassignedRoleID, ownerUserID string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO org_config (org_id, org_name, unassigned_role_id, owner_user_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (org_id) DO UPDATE SET
	org_name = EXCLUDED.org_name,
	unassigned_role_id = EXCLUDED.unassigned_role_id,
	owner_user_id = EXCLUDED.owner_user_id,
	updated_at = now()
`, orgID, orgName, unassignedRoleID, ownerUserID)
	return errors.Wrap(err, "failed to record org settings")
}

func (r *HierarchyRepository) Config(ctx context.Context, orgID string) (*agency.Config, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var c agency.Config
	err = tx.QueryRow(ctx, `
SELECT org_id, org_name, start_here_category_id, main_agency_id, unassigned_role_id, owner_user_id
FROM org_config
WHERE org_id = $1
`, orgID).Scan(&c.OrgID, &c.OrgName, &c.StartHereCategoryID, &c.MainAgencyID, &c.UnassignedRoleID, &c.OwnerUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load org config")
	}
	return &c, nil
}

var _ services.HierarchyRepository = (*HierarchyRepository)(nil)
