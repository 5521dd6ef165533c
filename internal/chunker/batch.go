package chunker

import "fmt"

// Batch groups chunks into consecutive lists of size items; the last list may
// be shorter. An empty input yields no batches.
func Batch(chunks []string, size int) ([][]string, error) {
	if err := validateBatchSize(size); err != nil {
		return nil, err
	}
	return batch(chunks, size), nil
}

func batch(chunks []string, size int) [][]string {
	if len(chunks) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(chunks)+size-1)/size)
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		out = append(out, chunks[start:end:end])
	}
	return out
}

func validateBatchSize(size int) error {
	if size < 1 {
		return fmt.Errorf("%w: batch size must be at least 1, got %d", ErrInvalidArgument, size)
	}
	return nil
}
