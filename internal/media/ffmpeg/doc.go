// Package ffmpeg drives the ffmpeg and ffprobe binaries for the pipeline:
// decoding a target into numbered frames, encoding frames back into a video
// through image2pipe, extracting the soundtrack and remuxing it.
package ffmpeg
