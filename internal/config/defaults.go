package config

const (
	defaultConfigPath       = "~/.config/reframe/config.toml"
	defaultWorkDir          = "~/.local/share/reframe/jobs"
	defaultStateDir         = "~/.local/share/reframe"
	defaultLogDir           = "~/.local/share/reframe/logs"
	defaultChunkSize        = 10
	defaultStaleJobDays     = 14
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultFrameExtension   = "jpg"
	defaultVideoCodec       = "libx264"
	defaultPixelFormat      = "yuv420p"
	defaultAudioBitrate     = 192000
	defaultFallbackFPS      = 25
	DefaultNoTargetExitCode = 3
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultMetricsBind      = "127.0.0.1:9464"
	defaultTracingEndpoint  = "http://localhost:4318"
	defaultServiceName      = "reframe"
	defaultPublishPrefix    = "reframe/"
)

// Checkpoint granularity values.
const (
	CheckpointChunk = "chunk"
	CheckpointFrame = "frame"
)

// Resume decision values for pipeline.on_resume.
const (
	ResumeContinue = "continue"
	ResumeRestart  = "restart"
)

// Remux failure policies.
const (
	RemuxFailureFatal = "fatal"
	RemuxFailureWarn  = "warn"
)

// Transformer kinds.
const (
	TransformerCommand     = "command"
	TransformerPassthrough = "passthrough"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Pipeline: Pipeline{
			ChunkSize:    defaultChunkSize,
			Checkpoint:   CheckpointChunk,
			OnResume:     ResumeContinue,
			RemuxFailure: RemuxFailureFatal,
			StaleJobDays: defaultStaleJobDays,
		},
		Media: Media{
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			FrameExtension:  defaultFrameExtension,
			VideoCodec:      defaultVideoCodec,
			PixelFormat:     defaultPixelFormat,
			AudioBitrate:    defaultAudioBitrate,
			FallbackFPS:     defaultFallbackFPS,
			SkipSilentAudio: true,
		},
		Transformer: Transformer{
			Args:             []string{"--subject", "{subject}", "--input", "{input}", "--output", "{output}"},
			DetectArgs:       []string{"--detect", "{subject}"},
			NoTargetExitCode: DefaultNoTargetExitCode,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Tracing: Tracing{
			Endpoint:    defaultTracingEndpoint,
			ServiceName: defaultServiceName,
		},
		Publish: Publish{
			Prefix: defaultPublishPrefix,
		},
	}
}
