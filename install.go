// Copyright 2025 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cdsl

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ianlewis/go-cdsl/markup"
	"github.com/ianlewis/go-cdsl/remote"
	"github.com/ianlewis/go-cdsl/store"
)

// newStagingDir creates a new, uniquely named staging directory for id.
func (c *Corpus) newStagingDir(id string) (string, error) {
	dir := filepath.Join(c.stagingDir(), id+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	return dir, nil
}

func (c *Corpus) backupPath(id string) string {
	return filepath.Join(c.stagingDir(), id+"-"+uuid.NewString()+backupSuffix)
}

// install downloads, builds and publishes a dictionary that is not
// installed.
func (c *Corpus) install(ctx context.Context, meta *Metadata) error {
	log := c.log.With("dict", meta.ID)
	log.InfoContext(ctx, "installing")

	rel, err := c.opts.Registry.Release(ctx, meta.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	staging, err := c.stage(ctx, meta, rel)
	if err != nil {
		return err
	}

	target := filepath.Join(c.dictDir(), meta.ID)
	// An invalid installation may be left over in the target directory.
	if err := os.RemoveAll(target); err != nil {
		return errors.Join(fmt.Errorf("removing invalid installation: %w", err), os.RemoveAll(staging))
	}
	if err := os.Rename(staging, target); err != nil {
		return errors.Join(fmt.Errorf("publishing %s: %w", meta.ID, err), os.RemoveAll(staging))
	}

	d, err := openDictionary(ctx, target, c.defaultSettings(meta.ID), c.opts.Logger)
	if err != nil {
		return errors.Join(err, os.RemoveAll(target))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.installed[meta.ID] = d
	newMeta := d.Metadata()
	c.mergeLocked(&newMeta)
	if err := c.writeRegistryLocked(); err != nil {
		log.WarnContext(ctx, "writing registry cache", "error", err)
	}
	log.InfoContext(ctx, "installed", "marker", newMeta.BuildMarker)
	return nil
}

// update replaces an installed dictionary if a newer release is available.
func (c *Corpus) update(ctx context.Context, d *Dictionary) error {
	meta := d.Metadata()
	log := c.log.With("dict", meta.ID)

	rel, err := c.opts.Registry.Release(ctx, meta.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if rel.Marker() == meta.BuildMarker {
		log.InfoContext(ctx, "up to date", "marker", meta.BuildMarker)
		return nil
	}

	log.InfoContext(ctx, "updating", "from", meta.BuildMarker, "to", rel.Marker())
	staging, err := c.stage(ctx, &meta, rel)
	if err != nil {
		return err
	}
	return c.publish(ctx, d, staging)
}

// Rebuild rebuilds the entry store of an installed dictionary from its kept
// source markup and swaps it in.
func (c *Corpus) Rebuild(ctx context.Context, id string) error {
	d, err := c.Dictionary(id)
	if err != nil {
		return err
	}
	meta := d.Metadata()

	_, err, _ = c.flight.Do(meta.ID, func() (any, error) {
		staging, err := c.newStagingDir(meta.ID)
		if err != nil {
			return nil, err
		}
		if err := c.rebuildIn(ctx, d, &meta, staging); err != nil {
			return nil, errors.Join(err, os.RemoveAll(staging))
		}
		return nil, c.publish(ctx, d, staging)
	})
	if err != nil {
		return &DictError{ID: meta.ID, Op: "rebuild", Err: err}
	}
	return nil
}

func (c *Corpus) rebuildIn(ctx context.Context, d *Dictionary, meta *Metadata, staging string) error {
	d.mu.RLock()
	src, err := os.Open(filepath.Join(d.dir, sourceFile))
	d.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	defer src.Close()

	if err := copyFile(filepath.Join(staging, sourceFile), src); err != nil {
		return err
	}
	if err := build(ctx, staging); err != nil {
		return err
	}
	meta.Installed = time.Now().UTC()
	return writeYAML(filepath.Join(staging, markerFile), meta)
}

// publish swaps the installation staged in staging into d and records the
// new metadata.
func (c *Corpus) publish(ctx context.Context, d *Dictionary, staging string) error {
	if err := d.replace(ctx, staging, c.backupPath(d.ID())); err != nil {
		return errors.Join(err, os.RemoveAll(staging))
	}

	meta := d.Metadata()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergeLocked(&meta)
	if err := c.writeRegistryLocked(); err != nil {
		c.log.WarnContext(ctx, "writing registry cache", "error", err)
	}
	c.log.InfoContext(ctx, "published", "dict", meta.ID, "marker", meta.BuildMarker)
	return nil
}

// stage downloads the release and builds a complete installation in a new
// staging directory. The staging directory is removed on failure.
func (c *Corpus) stage(ctx context.Context, meta *Metadata, rel *remote.Release) (_ string, err error) {
	dir, err := c.newStagingDir(meta.ID)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.RemoveAll(dir))
		}
	}()

	archive := filepath.Join(dir, archiveFile)
	if err := c.download(ctx, rel, archive); err != nil {
		return "", err
	}
	if err := extract(archive, meta.ID, filepath.Join(dir, sourceFile)); err != nil {
		return "", err
	}
	if err := os.Remove(archive); err != nil {
		return "", fmt.Errorf("removing archive: %w", err)
	}
	if err := build(ctx, dir); err != nil {
		return "", err
	}

	m := meta.clone()
	m.ArchiveURL = rel.ArchiveURL
	m.Size = rel.Size
	m.BuildMarker = rel.Marker()
	m.Installed = time.Now().UTC()
	if err := writeYAML(filepath.Join(dir, markerFile), m); err != nil {
		return "", err
	}
	return dir, nil
}

func (c *Corpus) download(ctx context.Context, rel *remote.Release, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	fetchErr := c.opts.Transport.Fetch(ctx, rel.ArchiveURL, rel.Size, f)
	closeErr := f.Close()

	switch {
	case errors.Is(fetchErr, remote.ErrSizeMismatch):
		return fmt.Errorf("%w: %w", ErrCorruptArchive, fetchErr)
	case errors.Is(fetchErr, context.Canceled), errors.Is(fetchErr, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrDownloadFailed, fetchErr)
	case fetchErr != nil:
		return fmt.Errorf("%w: %v", ErrDownloadFailed, fetchErr)
	case closeErr != nil:
		return fmt.Errorf("%w: %v", ErrDownloadFailed, closeErr)
	}
	return nil
}

// extract verifies every file in the archive and writes the dictionary's
// markup to dst as dictzip. The markup is the file named after the
// dictionary id, or else the first XML file.
func extract(archive, id, dst string) error {
	z, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	defer z.Close()

	var source *zip.File
	want := strings.ToLower(id) + ".xml"
	for _, f := range z.File {
		name := strings.ToLower(path.Base(f.Name))
		if name == want {
			source = f
			break
		}
		if source == nil && strings.HasSuffix(name, ".xml") {
			source = f
		}
	}
	if source == nil {
		return fmt.Errorf("%w: no markup in archive", ErrCorruptArchive)
	}

	for _, f := range z.File {
		if f == source || f.FileInfo().IsDir() {
			continue
		}
		if err := verify(f); err != nil {
			return err
		}
	}

	r, err := source.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, source.Name, err)
	}
	defer r.Close()
	// Reading to the end checks the file's checksum.
	if err := markup.WriteDictzip(dst, r); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, source.Name, err)
	}
	return nil
}

// verify reads a file in an archive to check its checksum.
func verify(f *zip.File) error {
	r, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, f.Name, err)
	}
	defer r.Close()
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, f.Name, err)
	}
	return nil
}

// build builds the entry store in dir from the source markup in dir.
func build(ctx context.Context, dir string) error {
	r, err := markup.Open(filepath.Join(dir, sourceFile))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	defer r.Close()

	if err := store.Build(ctx, filepath.Join(dir, storeFile), markup.Entries(r)); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrBuildFailed, err)
		}
		return fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	return nil
}

func copyFile(dst string, r io.Reader) (err error) {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("copying %s: %w", dst, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("copying %s: %w", dst, closeErr)
		}
	}()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("copying %s: %w", dst, err)
	}
	return nil
}
