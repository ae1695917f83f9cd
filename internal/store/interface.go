package store

import "io"

// Migrator handles schema migrations, separated so callers that only
// need to provision a fresh database don't have to depend on the full
// Store surface.
type Migrator interface {
	Migrate() error
}

// Store is the full persistence surface the controller and its
// collaborators depend on, composed of focused sub-interfaces the way
// the teacher's StateStore composes SessionStore/AgentStore/TaskStore.
type Store interface {
	io.Closer
	Migrator
	MissionStore
	EpochStore
	WorkUnitStore
	BacklogStore
	ReviewStore
	ContextStore
}

var (
	_ Store      = (*DB)(nil)
	_ Migrator   = (*DB)(nil)
)
