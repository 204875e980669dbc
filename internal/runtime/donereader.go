package runtime

import (
	"io"
	"sync"
)

// An [io.Reader] that signals EOF on a channel.
//
// Exec streams stdin into a container FIFO whose far end is held open by the
// containerd shim, so the process would never see EOF on its own; the done
// channel lets the caller close the container's stdin at the right moment.
type doneReader struct {
	inner io.Reader
	once  sync.Once
	done  chan struct{}
}

func newDoneReader(inner io.Reader) *doneReader {
	return &doneReader{inner: inner, done: make(chan struct{})}
}

// Reads from the wrapped reader, closing done on the first [io.EOF]. Other
// errors pass through without firing the channel.
func (d *doneReader) Read(p []byte) (int, error) {
	n, err := d.inner.Read(p)
	if err == io.EOF {
		d.once.Do(func() { close(d.done) })
	}
	return n, err
}
