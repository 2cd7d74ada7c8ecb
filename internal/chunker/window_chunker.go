package chunker

const (
	// DefaultSize is the maximum window length in characters.
	DefaultSize = 500
	// DefaultMinLength is the shortest window worth indexing.
	DefaultMinLength = 50
)

// WindowChunker splits text into contiguous, non-overlapping windows of at
// most size characters, starting at offset 0. Windows shorter than minLength
// are dropped, which in practice only affects the final partial window.
type WindowChunker struct {
	size      int
	minLength int
}

func NewWindowChunker(size, minLength int) *WindowChunker {
	if size <= 0 {
		size = DefaultSize
	}
	if minLength < 0 {
		minLength = 0
	}
	return &WindowChunker{size: size, minLength: minLength}
}

// Size returns the configured window length.
func (c *WindowChunker) Size() int { return c.size }

// Split returns the retained windows in original order. Lengths are counted
// in runes so multi-byte text is never cut mid-character.
func (c *WindowChunker) Split(content string) []string {
	runes := []rune(content)
	var windows []string
	for start := 0; start < len(runes); start += c.size {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		if end-start < c.minLength {
			continue
		}
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}
