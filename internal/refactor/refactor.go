// Package refactor carries out rename, move and remove operations against a
// loaded project. Orchestrators only edit the in-memory project; persisting
// and verifying the result is left to the caller.
package refactor

import (
	"context"

	"reshape/internal/cache"
	"reshape/internal/imports"
	"reshape/internal/operation"
	"reshape/internal/source"
	"reshape/internal/symbol"

	"go.uber.org/zap"
)

// Orchestrator executes one kind of operation.
type Orchestrator interface {
	Execute(ctx context.Context, op operation.Operation) *operation.Result
}

// Env bundles the collaborators orchestrators share.
type Env struct {
	Project *source.Project
	Finder  *symbol.Finder
	FS      *cache.FileSystemCache
	Log     *zap.Logger
}

// For returns the orchestrator handling op's type, or nil.
func For(env Env, t operation.Type) Orchestrator {
	if env.Log == nil {
		env.Log = zap.NewNop()
	}
	switch t {
	case operation.TypeRename:
		return &Renamer{env: env}
	case operation.TypeMove:
		return &Mover{env: env}
	case operation.TypeRemove:
		return &Remover{env: env}
	}
	return nil
}

func (e Env) imports() *imports.Manager {
	return imports.NewManager(e.Project, e.Log)
}

func resolve(env Env, res *operation.Result) (*source.Declaration, bool) {
	m, err := env.Finder.Resolve(res.Operation.Selector)
	if err != nil {
		res.Fail(err)
		return nil, false
	}
	if m.Ambiguous() {
		res.Warn("selector matched %d declarations; using the one at line %d", m.Candidates, m.Decl.Line)
	}
	return m.Decl, true
}
