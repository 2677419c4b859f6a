package workpool

// DefaultChunkSize is used when a non-positive chunk size is requested.
const DefaultChunkSize = 10

// Chunk is a contiguous slice of outstanding frames processed as one unit.
type Chunk struct {
	Index  int
	Frames []string
}

// Partition splits frames into ceil(len/size) chunks in order. Only the last
// chunk may be shorter; no frames yields no chunks.
func Partition(frames []string, size int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(frames) == 0 {
		return nil
	}
	chunks := make([]Chunk, 0, (len(frames)+size-1)/size)
	for start := 0; start < len(frames); start += size {
		end := min(start+size, len(frames))
		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Frames: frames[start:end:end],
		})
	}
	return chunks
}

// FrameCount totals the frames across chunks.
func FrameCount(chunks []Chunk) int {
	total := 0
	for _, c := range chunks {
		total += len(c.Frames)
	}
	return total
}
