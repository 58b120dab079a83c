// Package archive is the out-of-scope "compress a directory into one
// file" collaborator spec.md §1 describes only by its interface. It backs
// the Directory payload kind: CompressTree turns a directory into an
// archive file, Extract reverses it. Grounded on spec.md §4.1's
// compress-tree(path)/extract(file, path) description; the teacher has
// no directory-transfer feature to ground this on directly, since it
// only ever moves single files.
package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/pxsock/pxsock/internal/common"
)

// CompressTree walks dir and writes a tar+gzip archive of its contents to
// a new temp file, returning that file positioned at offset 0. The
// gzip codec comes from klauspost/compress (ZentaChain-zentalk-node's
// dependency) rather than stdlib compress/gzip, keeping the compression
// codec itself sourced from the pack; archive/tar (stdlib) sequences
// directory entries, a purely structural concern no pack library
// specializes in beyond what tar already stdlib-defines.
func CompressTree(dir string) (*os.File, error) {
	out, err := os.CreateTemp("", "pxsock-dir-*.tar.gz")
	if err != nil {
		return nil, wrap(common.ErrCompressionFailed, err)
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})

	closeErr := tw.Close()
	gzErr := gz.Close()

	if walkErr != nil || closeErr != nil || gzErr != nil {
		out.Close()
		os.Remove(out.Name())
		err := firstNonNil(walkErr, closeErr, gzErr)
		return nil, wrap(common.ErrCompressionFailed, err)
	}

	if _, err := out.Seek(0, io.SeekStart); err != nil {
		out.Close()
		return nil, wrap(common.ErrCompressionFailed, err)
	}
	return out, nil
}

// Extract reverses CompressTree, writing archive's contents under
// targetDir. Corrupt or truncated archives surface ErrDecompressionFailed.
func Extract(archive io.Reader, targetDir string) error {
	gz, err := gzip.NewReader(archive)
	if err != nil {
		return wrap(common.ErrDecompressionFailed, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wrap(common.ErrDecompressionFailed, err)
		}

		target, err := safeJoin(targetDir, hdr.Name)
		if err != nil {
			return wrap(common.ErrDecompressionFailed, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return wrap(common.ErrDecompressionFailed, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return wrap(common.ErrDecompressionFailed, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return wrap(common.ErrDecompressionFailed, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return wrap(common.ErrDecompressionFailed, err)
			}
			f.Close()
		}
	}
}

// safeJoin rejects tar entries that would escape targetDir via ".." path
// components (a zip-slip style archive attack).
func safeJoin(targetDir, name string) (string, error) {
	joined := filepath.Join(targetDir, name)
	rel, err := filepath.Rel(targetDir, joined)
	if err != nil || rel == ".." || filepath_hasPrefixDotDot(rel) {
		return "", os.ErrInvalid
	}
	return joined, nil
}

func filepath_hasPrefixDotDot(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.' &&
		(len(rel) == 2 || rel[2] == filepath.Separator)
}

func firstNonNil(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func wrap(kind, err error) error {
	return &common.WireError{Kind: kind, Msg: err.Error()}
}
