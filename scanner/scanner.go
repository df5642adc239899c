// Package scanner walks a build output directory and turns it into an
// asset bundle: every regular file read into memory, hashed with
// SHA-384 and classified by extension.
package scanner

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"github.com/srnarasim/dataprism-tooling/model"
)

// Options filters the walk. Include, when non-empty, is an allow-list;
// Exclude always wins over Include. Patterns are doublestar globs
// matched against the slash-separated path relative to the root.
type Options struct {
	Include []string
	Exclude []string
}

// Scan reads every matching file under root. The returned bundle lists
// files in sorted path order so downstream hashing is deterministic. A
// missing root is an error; an unreadable individual file is skipped
// with a warning, because one bad file should not block a deploy of
// the rest.
func Scan(root string, opts Options) (*model.AssetBundle, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", model.ErrDirectoryNotFound, root)
	}

	var files []model.AssetFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("%w: %s", model.ErrDirectoryNotFound, root)
			}
			logrus.WithError(err).Warnf("skipping %s", path)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matches(rel, opts) {
			return nil
		}
		if !d.Type().IsRegular() {
			logrus.Warnf("skipping %s: not a regular file", rel)
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			logrus.WithError(err).Warnf("skipping unreadable file %s", rel)
			return nil
		}

		sum := sha512.Sum384(content)
		files = append(files, model.AssetFile{
			Path:     rel,
			Content:  content,
			MimeType: model.MimeTypeFor(rel),
			Size:     int64(len(content)),
			Hash:     hex.EncodeToString(sum[:]),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return model.NewBundle(files), nil
}

func matches(rel string, opts Options) bool {
	for _, pat := range opts.Exclude {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return false
		}
	}
	if len(opts.Include) == 0 {
		return true
	}
	for _, pat := range opts.Include {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}
