package job

import (
	"errors"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// KeyPrefix starts every job directory name.
const KeyPrefix = "job__"

const keySeparator = "__"

// Identity names one job and its working directory.
type Identity struct {
	Key     string
	Subject string
	Target  string
	WorkDir string
}

// ErrEmptyPath is returned when the subject or target path is blank.
var ErrEmptyPath = errors.New("job identity: subject and target paths are required")

// Key returns "job__<base(subject)>__<base(target)>". Base names are NFC
// normalised so decomposed and composed spellings of a file name map to the
// same key.
func Key(subjectPath, targetPath string) (string, error) {
	subject := baseName(subjectPath)
	target := baseName(targetPath)
	if subject == "" || target == "" {
		return "", ErrEmptyPath
	}
	return KeyPrefix + subject + keySeparator + target, nil
}

// Resolve derives the identity of a job under workRoot. It touches nothing on disk.
func Resolve(workRoot, subjectPath, targetPath string) (Identity, error) {
	key, err := Key(subjectPath, targetPath)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		Key:     key,
		Subject: subjectPath,
		Target:  targetPath,
		WorkDir: filepath.Join(workRoot, key),
	}, nil
}

// IsJobDir reports whether a directory name looks like a job key.
func IsJobDir(name string) bool {
	return strings.HasPrefix(name, KeyPrefix) && len(name) > len(KeyPrefix)
}

func baseName(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	base := filepath.Base(filepath.Clean(trimmed))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return norm.NFC.String(base)
}
