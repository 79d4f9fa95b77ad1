package core

import "context"

// Dependency command ids routed through the gatekeeper.
const (
	CommandDepsList    = "deps:list"
	CommandDepsInstall = "deps:install"
	CommandDepsProcure = "deps:procure"
)

// Submitter is the part of Gatekeeper the dependency manager needs.
type Submitter interface {
	Submit(ctx context.Context, commandID string, params []string) *Response
}

// DependencyManager performs package operations through the gatekeeper.
// Every call goes through Submit; there is no direct execution path.
type DependencyManager struct {
	gk Submitter
}

// NewDependencyManager wraps gk.
func NewDependencyManager(gk Submitter) *DependencyManager {
	return &DependencyManager{gk: gk}
}

// ListDependencies lists installed packages.
func (m *DependencyManager) ListDependencies(ctx context.Context) *Response {
	return m.gk.Submit(ctx, CommandDepsList, nil)
}

// InstallPackage installs a vetted package, pinned to version when given.
func (m *DependencyManager) InstallPackage(ctx context.Context, name, version string) *Response {
	spec := name
	if version != "" {
		spec = name + "@" + version
	}
	return m.gk.Submit(ctx, CommandDepsInstall, []string{spec})
}

// ProcureDependency requests a new, unverified package.
func (m *DependencyManager) ProcureDependency(ctx context.Context, name string) *Response {
	return m.gk.Submit(ctx, CommandDepsProcure, []string{name})
}
