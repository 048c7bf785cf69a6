package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DirWriter persists rendered artifacts under a root directory. Writes go
// through a temp file plus rename so a crashed run never leaves a partial
// file at a final path.
type DirWriter struct {
	Root  string
	Force bool
}

// PlannedFile is one entry of a dry-run listing.
type PlannedFile struct {
	Path string
	Mode os.FileMode
}

// Plan lists every file a Write would produce, sorted by path.
func (w *DirWriter) Plan(res *Result) []PlannedFile {
	plan := make([]PlannedFile, 0, len(res.Artifacts))
	for _, a := range res.Artifacts {
		plan = append(plan, PlannedFile{Path: a.Path, Mode: artifactMode(a)})
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Path < plan[j].Path })
	return plan
}

// Validate runs the preflight checks without writing anything, so a
// dry-run can fail the same way a real run would.
func (w *DirWriter) Validate() error {
	abs, err := filepath.Abs(w.Root)
	if err != nil {
		return fmt.Errorf("resolve output directory %q: %w", w.Root, err)
	}
	return validateOutputDirectory(abs, w.Force)
}

// Write persists the result. The output directory must be empty unless
// Force is set.
func (w *DirWriter) Write(res *Result) error {
	abs, err := filepath.Abs(w.Root)
	if err != nil {
		return fmt.Errorf("resolve output directory %q: %w", w.Root, err)
	}
	if err := validateOutputDirectory(abs, w.Force); err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("create output directory %q: %w", abs, err)
	}
	for _, dir := range res.Directories {
		if err := os.MkdirAll(filepath.Join(abs, filepath.FromSlash(dir)), 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, a := range res.Artifacts {
		if err := writeFileAtomic(abs, filepath.FromSlash(a.Path), a.Content, artifactMode(a)); err != nil {
			return err
		}
	}
	return nil
}

func artifactMode(a Artifact) os.FileMode {
	if a.Executable {
		return 0o755
	}
	return 0o644
}

func validateOutputDirectory(absPath string, force bool) error {
	stat, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		// Missing directory will be created.
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access output directory %q: %w", absPath, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("output path %q is not a directory", absPath)
	}
	if force {
		return nil
	}
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return fmt.Errorf("cannot read output directory %q: %w", absPath, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("output directory %q is not empty (use --force to overwrite)", absPath)
	}
	return nil
}

func writeFileAtomic(baseDir, relPath string, content []byte, mode os.FileMode) error {
	fullPath := filepath.Join(baseDir, relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure target directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-specforge-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", relPath, err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
		}
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if len(content) > 0 {
		n, err := tmpFile.Write(content)
		if err != nil {
			return fmt.Errorf("write %s: %w", relPath, err)
		}
		if n != len(content) {
			return fmt.Errorf("incomplete write to %s: expected %d bytes, wrote %d", relPath, len(content), n)
		}
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", relPath, err)
	}
	if err := tmpFile.Chmod(mode); err != nil {
		return fmt.Errorf("set permissions on %s: %w", relPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close %s: %w", relPath, err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, fullPath); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpPath, fullPath, err)
	}
	success = true
	return nil
}
