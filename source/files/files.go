package files

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/root-talis/kaiten/revision"
	"github.com/root-talis/kaiten/source"
)

// VersionsDir is the subdirectory of a work directory holding revision artifacts.
const VersionsDir = "versions"

type filesSource struct {
	fsys    fs.FS
	workDir string
}

var ErrWorkDirectoryIsNotADirectory = errors.New("work directory is not a directory")

// NewFilesSource returns a source reading artifacts from <workDir>/versions inside
// fsys. workDir must exist and must not be empty.
func NewFilesSource(fsys fs.FS, workDir string) (source.Source, error) {
	workDir = path.Clean(workDir)

	stat, err := fs.Stat(fsys, workDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", source.ErrNotInitialized, workDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat work directory: %w", err)
	}

	if !stat.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrWorkDirectoryIsNotADirectory, workDir)
	}

	entries, err := fs.ReadDir(fsys, workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read work directory: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", source.ErrNotInitialized, workDir)
	}

	return &filesSource{
		fsys:    fsys,
		workDir: workDir,
	}, nil
}

func (src *filesSource) Revisions() ([]revision.Revision, error) {
	versionsDir := path.Join(src.workDir, VersionsDir)

	dirEntries, err := fs.ReadDir(src.fsys, versionsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", source.ErrNotInitialized, versionsDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read contents of versions directory: %w", err)
	}

	revisions := make([]revision.Revision, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.IsDir() || !entry.Type().IsRegular() {
			continue
		}

		if !strings.HasSuffix(entry.Name(), revision.Extension) {
			continue
		}

		rev, err := src.readRevision(path.Join(versionsDir, entry.Name()))
		if err != nil {
			return nil, err
		}

		revisions = append(revisions, rev)
	}

	SortRevisions(revisions)

	return revisions, nil
}

func (src *filesSource) readRevision(name string) (revision.Revision, error) {
	file, err := src.fsys.Open(name)
	if err != nil {
		return revision.Revision{}, fmt.Errorf("failed to open revision file: %w", err)
	}
	defer file.Close()

	return revision.Parse(file, name)
}

// SortRevisions orders revisions ascending by timestamp. Equal timestamps are
// ordered by id so that the result does not depend on directory enumeration.
func SortRevisions(revisions []revision.Revision) {
	sort.SliceStable(revisions, func(i, j int) bool {
		if !revisions[i].Timestamp.Equal(revisions[j].Timestamp) {
			return revisions[i].Timestamp.Before(revisions[j].Timestamp)
		}
		return revisions[i].ID < revisions[j].ID
	})
}
