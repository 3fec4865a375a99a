package refactor

import (
	"context"

	"reshape/internal/operation"
	"reshape/internal/source"

	"go.uber.org/zap"
)

// Remover deletes a declaration.
type Remover struct {
	env Env
	// structural removes d through the syntax tree; nil means Project.Remove.
	structural func(d *source.Declaration) error
}

func (r *Remover) Execute(_ context.Context, op operation.Operation) *operation.Result {
	res := operation.NewResult(op)
	opts := op.RemoveOpts()
	d, ok := resolve(r.env, res)
	if !ok {
		return res
	}
	p := r.env.Project

	if !opts.ForceRemove {
		refs, err := r.env.Finder.ExternalReferences(d)
		if err != nil {
			return res.Fail(operation.Wrap(operation.KindInternal, err, "reference scan failed"))
		}
		if len(refs) > 0 {
			return res.Fail(operation.Errorf(operation.KindExternalReferences, "%d external reference(s) exist", len(refs)))
		}
	}

	f, err := p.Load(d.Path)
	if err != nil {
		return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot load "+d.Path))
	}
	used := f.IdentifiersIn(d.Start, d.End)

	remove := r.structural
	if remove == nil {
		remove = p.Remove
	}
	res.RemovalMethod = operation.RemovalStandard
	if err := remove(d); err != nil {
		if !opts.FallbackToAggressive {
			res.RemovalMethod = operation.RemovalFailed
			return res.Fail(operation.Wrap(operation.KindInternal, err, "structural removal failed"))
		}
		r.env.Log.Warn("structural removal failed, scanning lines", zap.String("symbol", d.Name), zap.Error(err))
		if err := p.RemoveByText(d.Path, d.Kind, d.Name); err != nil {
			res.RemovalMethod = operation.RemovalFailed
			return res.Fail(operation.Wrap(operation.KindInternal, err, "line-scan removal failed"))
		}
		res.RemovalMethod = operation.RemovalAggressive
		res.Warn("structural removal failed (%v); removed by line scan", err)
	}
	res.AddAffected(d.Path)

	if d.TopLevel {
		if _, err := p.RemoveExportSpecifier(d.Path, d.Name); err != nil {
			return res.Fail(operation.Wrap(operation.KindInternal, err, "failed to update export list"))
		}
	}

	if opts.CleanupDependencies {
		removed, err := r.env.imports().RemoveUnused(d.Path, used)
		if err != nil {
			return res.Fail(operation.Wrap(operation.KindInternal, err, "import cleanup failed"))
		}
		if len(removed) > 0 {
			r.env.Log.Debug("dropped unused imports", zap.Strings("names", removed))
		}
	}

	res.Success = true
	r.env.Log.Info("removed symbol",
		zap.String("symbol", d.Name),
		zap.String("method", string(res.RemovalMethod)))
	return res
}
