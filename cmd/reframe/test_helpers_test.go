package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reframe/internal/testsupport"
)

const ffmpegStub = `for last; do :; done
case "$last" in
-version)
  echo "ffmpeg version test-stub"
  ;;
*%d*)
  i=0
  while [ $i -lt 3 ]; do
    printf 'frame%s' "$i" > "$(printf "$last" "$i")"
    i=$((i+1))
  done
  ;;
*)
  cat > /dev/null
  printf 'media' > "$last"
  ;;
esac
`

const ffprobeStub = `for last; do :; done
if [ "$last" = "-version" ]; then
  echo "ffprobe version test-stub"
  exit 0
fi
cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","avg_frame_rate":"24/1"},{"index":1,"codec_type":"audio"}],"format":{"format_name":"mov"}}
JSON
`

type cliTestEnv struct {
	baseDir    string
	configPath string
	workDir    string
	subject    string
	target     string
	output     string
}

func setupCLITestEnv(t *testing.T, extraConfig string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("REFRAME_WORK_DIR", "")
	t.Setenv("REFRAME_TRANSFORMER", "")

	binDir := filepath.Join(base, "bin")
	ffmpeg := testsupport.WriteScript(t, binDir, "ffmpeg", ffmpegStub)
	ffprobe := testsupport.WriteScript(t, binDir, "ffprobe", ffprobeStub)

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "reframe.toml"),
		workDir:    filepath.Join(base, "jobs"),
		subject:    filepath.Join(base, "in", "face.png"),
		target:     filepath.Join(base, "in", "clip.mp4"),
		output:     filepath.Join(base, "out", "clip.mp4"),
	}
	testsupport.WriteFile(t, env.subject, 16)
	testsupport.WriteFile(t, env.target, 64)

	content := fmt.Sprintf(`[paths]
work_dir = %q
state_dir = %q
log_dir = %q

[pipeline]
workers = 2
chunk_size = 2

[media]
ffmpeg_binary = %q
ffprobe_binary = %q

[logging]
level = "error"
%s`, env.workDir, filepath.Join(base, "state"), filepath.Join(base, "logs"), ffmpeg, ffprobe, extraConfig)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) run(t *testing.T, extra ...string) (string, error) {
	t.Helper()
	args := append([]string{"run", e.subject, e.target, e.output, "--no-progress", "--skip-preflight"}, extra...)
	out, _, err := runCLI(t, args, e.configPath)
	return out, err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
