package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reshape/internal/operation"
	"reshape/internal/source"
)

// validate rejects operations that cannot run before anything is loaded or
// mutated. A missing target directory is not an error; the mover creates it.
func (e *Engine) validate(op operation.Operation) error {
	if err := operation.Validate(op); err != nil {
		return err
	}

	src := e.project.Abs(op.Selector.FilePath)
	if !e.fs.IsFile(src) {
		return operation.Errorf(operation.KindValidation, "source file %s does not exist", op.Selector.FilePath)
	}
	if !source.Supported(src) {
		return operation.Errorf(operation.KindValidation, "unsupported source file %s", op.Selector.FilePath)
	}
	if !e.inRoot(src) {
		return operation.Errorf(operation.KindValidation, "source file %s is outside the project root", op.Selector.FilePath)
	}

	if op.Type != operation.TypeMove {
		return nil
	}
	target := e.project.Abs(op.TargetFilePath)
	if !source.Supported(target) {
		return operation.Errorf(operation.KindValidation, "unsupported target file %s", op.TargetFilePath)
	}
	if !e.inRoot(target) {
		return operation.Errorf(operation.KindValidation, "target file %s is outside the project root", op.TargetFilePath)
	}
	if e.fs.Exists(target) && !e.fs.IsFile(target) {
		return operation.Errorf(operation.KindValidation, "target %s is a directory", op.TargetFilePath)
	}
	return creatable(filepath.Dir(target))
}

func (e *Engine) inRoot(path string) bool {
	rel, err := filepath.Rel(e.project.Root(), path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// creatable reports whether dir exists as a directory or could be created,
// meaning its nearest existing ancestor is a directory.
func creatable(dir string) error {
	for d := dir; ; d = filepath.Dir(d) {
		info, err := os.Stat(d)
		if err == nil {
			if !info.IsDir() {
				return operation.Errorf(operation.KindValidation, "cannot create target directory %s: %s is not a directory", dir, d)
			}
			return nil
		}
		if !os.IsNotExist(err) {
			return operation.Wrap(operation.KindValidation, err, fmt.Sprintf("cannot create target directory %s", dir))
		}
		if parent := filepath.Dir(d); parent == d {
			return nil
		}
	}
}
