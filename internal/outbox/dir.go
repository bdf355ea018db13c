package outbox

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// fileMode is the permission of spooled documents, readable by a sender
// running as another user.
const fileMode = 0o644

// Dir spools documents as files under a root directory.
type Dir struct {
	root string
}

// NewDir creates a Dir outbox rooted at root, creating the directory if
// needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, NewError("dir", root, ReasonIO, err)
	}
	return &Dir{root: root}, nil
}

// Put writes the document to root/key. The file is written under a
// temporary name and renamed into place, so readers never observe a
// partial document.
func (d *Dir) Put(ctx context.Context, key string, doc []byte) error {
	if !ValidKey(key) {
		return NewError(d.Name(), key, ReasonInvalidKey, nil)
	}
	if err := ctx.Err(); err != nil {
		return NewError(d.Name(), key, ReasonIO, err)
	}

	path := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return NewError(d.Name(), key, classifyFSError(err), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return NewError(d.Name(), key, classifyFSError(err), err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return NewError(d.Name(), key, ReasonIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return NewError(d.Name(), key, ReasonIO, err)
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		os.Remove(tmpName)
		return NewError(d.Name(), key, classifyFSError(err), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return NewError(d.Name(), key, classifyFSError(err), err)
	}
	return nil
}

// Name returns the outbox name.
func (d *Dir) Name() string {
	return "dir"
}

func classifyFSError(err error) ErrorReason {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return ReasonAccessDenied
	case errors.Is(err, fs.ErrNotExist):
		return ReasonNotFound
	default:
		return ReasonIO
	}
}
