package core

import (
	"context"
	"reflect"
	"testing"
)

type recordingSubmitter struct {
	ids    []string
	params [][]string
}

func (s *recordingSubmitter) Submit(_ context.Context, id string, params []string) *Response {
	s.ids = append(s.ids, id)
	s.params = append(s.params, params)
	return &Response{Status: StatusSuccess, CommandID: &id}
}

func TestDependencyManager_RoutesThroughSubmit(t *testing.T) {
	sub := &recordingSubmitter{}
	m := NewDependencyManager(sub)
	ctx := context.Background()

	m.ListDependencies(ctx)
	m.InstallPackage(ctx, "requests", "2.28.1")
	m.InstallPackage(ctx, "left-pad", "")
	m.ProcureDependency(ctx, "unverified-new-library")

	wantIDs := []string{CommandDepsList, CommandDepsInstall, CommandDepsInstall, CommandDepsProcure}
	if !reflect.DeepEqual(sub.ids, wantIDs) {
		t.Fatalf("ids = %v, want %v", sub.ids, wantIDs)
	}
	wantParams := [][]string{nil, {"requests@2.28.1"}, {"left-pad"}, {"unverified-new-library"}}
	if !reflect.DeepEqual(sub.params, wantParams) {
		t.Fatalf("params = %v, want %v", sub.params, wantParams)
	}
}
