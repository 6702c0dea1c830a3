// Package extract wraps the natural-language extraction service. The service
// turns free text into either a full action list (direct builds) or a
// step-scoped value (wizard turns). A nil/unusable result is a parse failure,
// surfaced as ErrUnparsable — never a fatal error.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agencyhq/warroom/modules/structure/domain/action"
)

// ErrUnparsable reports that the extraction service could not produce a
// usable value from the input. Callers surface "could not parse" to the user
// and attempt no mutation.
var ErrUnparsable = errors.New("extract: could not parse input")

// HierarchyPair is one downline→upline relation by agency name.
type HierarchyPair struct {
	Downline string `json:"downline"`
	Upline   string `json:"upline"`
}

// WizardStep identifies which wizard question a turn answers.
type WizardStep int

const (
	StepMainAgency WizardStep = iota + 1
	StepSubAgencies
	StepHierarchy
)

type Extractor interface {
	// ParseBuildCommand converts free-form build instructions into an
	// ordered action list.
	ParseBuildCommand(ctx context.Context, text string) ([]action.Action, error)

	// MainAgencyName extracts a single agency name (wizard step 1).
	MainAgencyName(ctx context.Context, text string) (string, error)

	// SubAgencyNames extracts a list of agency names (wizard step 2).
	SubAgencyNames(ctx context.Context, text string) ([]string, error)

	// HierarchyPairs extracts downline/upline pairs (wizard step 3).
	HierarchyPairs(ctx context.Context, text string) ([]HierarchyPair, error)
}

type wireAction struct {
	Type     string `json:"type"`
	Agencies []struct {
		Name   string `json:"name"`
		Emoji  string `json:"emoji"`
		IsMain bool   `json:"is_main"`
	} `json:"agencies"`
	Downline string `json:"downline"`
	Upline   string `json:"upline"`
}

type actionsEnvelope struct {
	Actions []wireAction `json:"actions"`
}

// DecodeActionList parses the service's `{"actions": [...]}` JSON into the
// closed action set, preserving order. Unknown action types are rejected.
func DecodeActionList(raw []byte) ([]action.Action, error) {
	var envelope actionsEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	if len(envelope.Actions) == 0 {
		return nil, ErrUnparsable
	}

	out := make([]action.Action, 0, len(envelope.Actions))
	for _, wire := range envelope.Actions {
		switch wire.Type {
		case "WIPE":
			out = append(out, action.Wipe{})
		case "CREATE_MAIN_STRUCTURE":
			out = append(out, action.BuildMainStructure{})
		case "INITIALIZE":
			specs := make([]action.AgencySpec, 0, len(wire.Agencies))
			for _, a := range wire.Agencies {
				specs = append(specs, action.AgencySpec{Name: a.Name, Emoji: a.Emoji, IsMain: a.IsMain})
			}
			out = append(out, action.InitializeAgencies{Agencies: specs})
		case "MAP":
			out = append(out, action.MapEdge{DownlineName: wire.Downline, UplineName: wire.Upline})
		case "DEPLOY_ONBOARDING":
			out = append(out, action.DeployOnboarding{})
		default:
			return nil, fmt.Errorf("%w: unknown action type %q", ErrUnparsable, wire.Type)
		}
	}
	return out, nil
}

// StripFences removes a markdown code fence from around a model response.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
