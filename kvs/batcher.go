package kvs

// batcher counts mutations since the last flush and says when the
// thresholds force one. It is not safe for concurrent use; Handle guards it
// with its mutex.
type batcher struct {
	maxCount int
	maxBytes int64

	count int
	bytes int64
}

func newBatcher(maxCount int, maxBytes int64) batcher {
	return batcher{maxCount: maxCount, maxBytes: maxBytes}
}

// add records one mutation of n bytes and reports whether a flush is due.
func (b *batcher) add(n int) bool {
	b.count++
	b.bytes += int64(n)
	return b.count >= b.maxCount || b.bytes >= b.maxBytes
}

func (b *batcher) reset() {
	b.count = 0
	b.bytes = 0
}
