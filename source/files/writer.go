package files

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/root-talis/kaiten/revision"
)

// ConfigFileName is the configuration file created inside a new work directory.
const ConfigFileName = "kaiten.yaml"

const defaultConfig = `# kaiten work directory configuration
db:
  # mysql | postgres | sqlite
  driver: sqlite
  # full data source name; built from the fields below when empty
  dsn: ""
  host: 127.0.0.1
  port: 0
  user: ""
  password: ""
  name: kaiten.db
  sslmode: disable
ledger:
  table: kaiten_revisions
  schema: ""
log:
  level: info
  pretty: false
`

var (
	ErrWorkDirectoryIsNotEmpty = errors.New("work directory already exists and is not empty")
	ErrRevisionExists          = errors.New("revision file already exists")
)

// Setup creates a work directory with an empty versions directory and a default
// configuration file. An existing directory must be empty.
func Setup(workDir string) error {
	entries, err := os.ReadDir(workDir)
	switch {
	case err == nil && len(entries) > 0:
		return fmt.Errorf("%w: %s", ErrWorkDirectoryIsNotEmpty, workDir)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to read work directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(workDir, VersionsDir), 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

	configPath := filepath.Join(workDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	return nil
}

// Write stores rev as a new artifact in the versions directory of workDir and
// returns the path of the written file. Existing artifacts are never overwritten.
func Write(workDir string, rev revision.Revision) (string, error) {
	var buf bytes.Buffer
	if err := revision.Serialize(&buf, rev); err != nil {
		return "", err
	}

	fileName := filepath.Join(workDir, VersionsDir, revision.FileName(rev))

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec
	if errors.Is(err, os.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrRevisionExists, fileName)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create revision file: %w", err)
	}

	if _, err := buf.WriteTo(file); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write revision file: %w", err)
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close revision file: %w", err)
	}

	return fileName, nil
}
