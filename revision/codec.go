package revision

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	Banner = "-- identifiers used by kaiten"

	UpgradeMarker   = "migration:upgrade"
	DowngradeMarker = "migration:downgrade"

	headerID          = "id"
	headerDescription = "description"
	headerTimestamp   = "ts"
)

type parseSection int

const (
	sectionHeader parseSection = iota
	sectionUpgrade
	sectionDowngrade
)

// Parse reads a revision artifact. name is used in error messages only.
func Parse(r io.Reader, name string) (Revision, error) { //nolint:cyclop
	headers := make(map[string]string, 3)
	section := sectionHeader

	var upgrade, downgrade strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()

		comment, isComment := commentBody(text)

		switch section {
		case sectionHeader:
			if !isComment {
				if strings.TrimSpace(text) != "" {
					return Revision{}, &ParseError{File: name, Line: line, Err: fmt.Errorf(
						"%w: sql text before \"%s\"", ErrMissingMarker, UpgradeMarker,
					)}
				}
				continue
			}
			if key, value, ok := headerField(comment); ok {
				headers[key] = value
				continue
			}
			if strings.Contains(comment, DowngradeMarker) {
				return Revision{}, &ParseError{File: name, Line: line, Err: fmt.Errorf(
					"%w: \"%s\" found before \"%s\"", ErrMissingMarker, DowngradeMarker, UpgradeMarker,
				)}
			}
			if strings.Contains(comment, UpgradeMarker) {
				section = sectionUpgrade
			}

		case sectionUpgrade:
			if isComment && strings.Contains(comment, DowngradeMarker) {
				section = sectionDowngrade
				continue
			}
			upgrade.WriteString(text)
			upgrade.WriteByte('\n')

		case sectionDowngrade:
			downgrade.WriteString(text)
			downgrade.WriteByte('\n')
		}
	}

	if err := scanner.Err(); err != nil {
		return Revision{}, &ParseError{File: name, Err: err}
	}

	switch section {
	case sectionHeader:
		return Revision{}, &ParseError{File: name, Err: fmt.Errorf("%w: \"%s\"", ErrMissingMarker, UpgradeMarker)}
	case sectionUpgrade:
		return Revision{}, &ParseError{File: name, Err: fmt.Errorf("%w: \"%s\"", ErrMissingMarker, DowngradeMarker)}
	case sectionDowngrade:
	}

	rev, err := fromHeaders(headers)
	if err != nil {
		return Revision{}, &ParseError{File: name, Err: err}
	}

	rev, err = WithScripts(rev, upgrade.String(), downgrade.String())
	if err != nil {
		return Revision{}, &ParseError{File: name, Err: err}
	}

	return rev, nil
}

// WithScripts sets the raw upgrade and downgrade text of rev and splits it into
// statements. Blank text yields no statements.
func WithScripts(rev Revision, upgradeSQL, downgradeSQL string) (Revision, error) {
	var err error

	rev.UpgradeSQL = strings.TrimSpace(upgradeSQL)
	rev.DowngradeSQL = strings.TrimSpace(downgradeSQL)

	rev.Upgrade, err = Split(rev.UpgradeSQL)
	if err != nil {
		return Revision{}, fmt.Errorf("upgrade script: %w", err)
	}

	rev.Downgrade, err = Split(rev.DowngradeSQL)
	if err != nil {
		return Revision{}, fmt.Errorf("downgrade script: %w", err)
	}

	return rev, nil
}

func fromHeaders(headers map[string]string) (Revision, error) {
	for _, key := range []string{headerID, headerDescription, headerTimestamp} {
		if _, ok := headers[key]; !ok {
			return Revision{}, fmt.Errorf("%w: \"%s=\"", ErrMissingHeader, key)
		}
	}

	if headers[headerID] == "" {
		return Revision{}, fmt.Errorf("%w: \"%s=\" is empty", ErrMissingHeader, headerID)
	}

	ts, err := ParseTimestamp(headers[headerTimestamp])
	if err != nil {
		return Revision{}, err
	}

	return Revision{
		ID:          headers[headerID],
		Description: headers[headerDescription],
		Timestamp:   ts,
	}, nil
}

// commentBody returns the text of a "--" comment line without the dashes.
func commentBody(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "--") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimLeft(trimmed, "-")), true
}

func headerField(comment string) (string, string, bool) {
	key, value, ok := strings.Cut(comment, "=")
	if !ok {
		return "", "", false
	}

	key = strings.TrimSpace(key)
	switch key {
	case headerID, headerDescription, headerTimestamp:
		return key, strings.TrimSpace(value), true
	default:
		return "", "", false
	}
}

// ---

// Serialize writes rev in the artifact format read by Parse.
// Header values must fit on one line without surrounding blanks.
func Serialize(w io.Writer, rev Revision) error {
	if err := checkHeaderValue(headerID, rev.ID); err != nil {
		return err
	}
	if err := checkHeaderValue(headerDescription, rev.Description); err != nil {
		return err
	}

	var b strings.Builder

	b.WriteString(Banner + "\n")
	fmt.Fprintf(&b, "-- %s=%s\n", headerID, rev.ID)
	fmt.Fprintf(&b, "-- %s=%s\n", headerDescription, rev.Description)
	fmt.Fprintf(&b, "-- %s=%s\n", headerTimestamp, FormatTimestamp(rev.Timestamp))
	b.WriteString("-- " + UpgradeMarker + "\n")
	writeScript(&b, rev.UpgradeSQL, rev.Upgrade)
	b.WriteString("-- " + DowngradeMarker + "\n")
	writeScript(&b, rev.DowngradeSQL, rev.Downgrade)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write revision %s: %w", rev.ID, err)
	}

	return nil
}

func checkHeaderValue(key, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: \"%s=\" spans several lines", ErrInvalidHeader, key)
	}
	if value != strings.TrimSpace(value) {
		return fmt.Errorf("%w: \"%s=\" has leading or trailing blanks", ErrInvalidHeader, key)
	}
	return nil
}

// writeScript writes the raw text of a script. Without raw text each statement is
// terminated on a line of its own, so a trailing line comment cannot swallow it.
func writeScript(b *strings.Builder, text string, statements []string) {
	text = strings.TrimSpace(text)
	if text == "" && len(statements) > 0 {
		text = strings.Join(statements, "\n;\n") + "\n;"
	}
	if text == "" {
		b.WriteString("\n")
		return
	}
	b.WriteString(text + "\n\n")
}
