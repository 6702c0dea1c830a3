package testkit

import (
	"context"

	"github.com/agencyhq/warroom/internal/extract"
	"github.com/agencyhq/warroom/modules/structure/domain/action"
)

// StubExtractor returns canned extraction results.
type StubExtractor struct {
	Actions    []action.Action
	ActionsErr error

	Main    string
	MainErr error

	Subs    []string
	SubsErr error

	Pairs    []extract.HierarchyPair
	PairsErr error
}

func (s *StubExtractor) ParseBuildCommand(_ context.Context, _ string) ([]action.Action, error) {
	return s.Actions, s.ActionsErr
}

func (s *StubExtractor) MainAgencyName(_ context.Context, _ string) (string, error) {
	return s.Main, s.MainErr
}

func (s *StubExtractor) SubAgencyNames(_ context.Context, _ string) ([]string, error) {
	return s.Subs, s.SubsErr
}

func (s *StubExtractor) HierarchyPairs(_ context.Context, _ string) ([]extract.HierarchyPair, error) {
	return s.Pairs, s.PairsErr
}

var _ extract.Extractor = (*StubExtractor)(nil)
