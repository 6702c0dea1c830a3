package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/agencyhq/warroom/internal/workspace"
	"github.com/agencyhq/warroom/pkg/serrors"
)

// RenameTarget is one agency to reconcile toward its canonical names.
type RenameTarget struct {
	Name  string
	Emoji string
}

var trailingNumber = regexp.MustCompile(`(\d+)`)

// ReconcileService renames drifted categories and channels back to canonical
// form. Renames happen only when the current name differs, so a second pass
// over canonical structure is a no-op.
type ReconcileService struct {
	ws  workspace.Client
	log *logrus.Logger
}

func NewReconcileService(ws workspace.Client, log *logrus.Logger) *ReconcileService {
	return &ReconcileService{ws: ws, log: log}
}

// OrganizeAgencies reconciles each target and returns a human-readable change
// list. A target whose category cannot be found is reported, not fatal.
func (s *ReconcileService) OrganizeAgencies(ctx context.Context, orgID string, targets []RenameTarget) ([]string, error) {
	channels, err := s.ws.Channels(ctx, orgID)
	if err != nil {
		return nil, serrors.New(502, "REC_LIST_CHANNELS", "failed to list channels", err)
	}

	children := make(map[string][]workspace.Channel)
	for _, ch := range channels {
		if ch.ParentID != "" {
			children[ch.ParentID] = append(children[ch.ParentID], ch)
		}
	}

	results := make([]string, 0, len(targets))
	for _, target := range targets {
		// A blank name would substring-match every category.
		if strings.TrimSpace(target.Name) == "" {
			continue
		}
		category := findCategory(channels, target.Name)
		if category == nil {
			results = append(results, "category not found for: "+target.Name)
			continue
		}

		canonical := target.Name
		if target.Emoji != "" {
			canonical = target.Name + " " + target.Emoji
		}
		if category.Name != canonical {
			if err := s.ws.RenameChannel(ctx, orgID, category.ID, canonical); err != nil {
				return results, serrors.New(502, "REC_RENAME", "failed to rename category "+category.Name, err)
			}
			results = append(results, fmt.Sprintf("renamed category: %s -> %s", category.Name, canonical))
		}

		// Channel names use the first word only, to stay concise.
		slug := strings.ToLower(strings.Fields(target.Name)[0])
		for _, ch := range children[category.ID] {
			canonical := canonicalChildName(ch, target.Name, slug)
			if canonical == "" || canonical == ch.Name {
				continue
			}
			if err := s.ws.RenameChannel(ctx, orgID, ch.ID, canonical); err != nil {
				return results, serrors.New(502, "REC_RENAME", "failed to rename channel "+ch.Name, err)
			}
			results = append(results, fmt.Sprintf("renamed: %s -> %s", ch.Name, canonical))
		}
	}

	s.log.WithFields(logrus.Fields{"org_id": orgID, "changes": len(results)}).Info("structure: reconcile pass complete")
	return results, nil
}

func findCategory(channels []workspace.Channel, name string) *workspace.Channel {
	lower := strings.ToLower(name)
	for i := range channels {
		c := &channels[i]
		if c.Type == workspace.ChannelCategory && strings.Contains(strings.ToLower(c.Name), lower) {
			return c
		}
	}
	return nil
}

func canonicalChildName(ch workspace.Channel, agencyName, slug string) string {
	switch ch.Type {
	case workspace.ChannelText:
		for _, kind := range []string{"general", "wins", "digest", "resources"} {
			if strings.Contains(ch.Name, kind) {
				return slug + "-" + kind
			}
		}
	case workspace.ChannelVoice:
		lower := strings.ToLower(ch.Name)
		if strings.Contains(lower, "meeting") {
			return agencyName + " Meeting Room"
		}
		if strings.Contains(lower, "dial") {
			num := "1"
			if m := trailingNumber.FindString(ch.Name); m != "" {
				num = m
			}
			return agencyName + " Dial Room " + num
		}
	}
	return ""
}
