package framestore

import (
	"path/filepath"
	"strings"
)

// Control files that share the work directory with frames.
const (
	LedgerFileName    = "progress.txt"
	AudioFileName     = "audio.mp3"
	TempVideoFileName = "tmp__video.mp4"
	VideoFileName     = "video.mp4"
)

// DefaultExtension is used when no frame extension is configured.
const DefaultExtension = "jpg"

const framePrefix = "frame"

var controlFiles = map[string]struct{}{
	LedgerFileName:    {},
	AudioFileName:     {},
	TempVideoFileName: {},
	VideoFileName:     {},
}

// IsControlFile reports whether name is one of the reserved work-dir files.
func IsControlFile(name string) bool {
	_, ok := controlFiles[name]
	return ok
}

// FramePattern is the printf-style output pattern handed to the decoder.
func FramePattern(workDir, ext string) string {
	return filepath.Join(workDir, framePrefix+"%d."+normalizeExt(ext))
}

func normalizeExt(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return DefaultExtension
	}
	return ext
}
