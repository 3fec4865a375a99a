package refactor

import (
	"context"

	"reshape/internal/operation"
	"reshape/internal/source"

	"go.uber.org/zap"
)

// Renamer renames a declaration and every reference to it.
type Renamer struct {
	env Env
}

func (r *Renamer) Execute(_ context.Context, op operation.Operation) *operation.Result {
	res := operation.NewResult(op)
	d, ok := resolve(r.env, res)
	if !ok {
		return res
	}

	switch {
	case source.IsReserved(op.NewName):
		return res.Fail(operation.Errorf(operation.KindValidation, "%q is a reserved word", op.NewName))
	case !source.IsValidIdentifier(op.NewName):
		return res.Fail(operation.Errorf(operation.KindValidation, "%q is not a valid identifier", op.NewName))
	}
	if err := r.env.Finder.RenameConflict(d, op.NewName); err != nil {
		return res.Fail(err)
	}

	var include func(string) bool
	if op.Scope == operation.ScopeFile {
		home := d.Path
		include = func(path string) bool { return path == home }
	}

	touched, err := r.env.Project.Rename(d, op.NewName, include)
	if err != nil {
		return res.Fail(operation.Wrap(operation.KindInternal, err, "rename failed"))
	}
	res.AddAffected(d.Path)
	res.AddAffected(touched...)
	res.Success = true

	r.env.Log.Info("renamed symbol",
		zap.String("from", d.Name),
		zap.String("to", op.NewName),
		zap.Int("files", len(res.AffectedFiles)))
	return res
}
