package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// BodyKind tags the three body shapes.
type BodyKind int

const (
	// Buffered bodies hold the whole content in memory and are emitted
	// line by line.
	Buffered BodyKind = iota
	// Chunked bodies already iterate over chunks (a slice or a reader).
	Chunked
	// Producer bodies are driven by a callback that writes into a sink.
	Producer
)

func (k BodyKind) String() string {
	switch k {
	case Buffered:
		return "buffered"
	case Chunked:
		return "chunked"
	case Producer:
		return "producer"
	}
	return "unknown"
}

// readChunkSize is the chunk size used when iterating over a reader.
const readChunkSize = 32 << 10

// ErrBodyClosed is returned by Each after Close.
var ErrBodyClosed = errors.New("body already closed")

// Body normalizes a response body into one chunk-emission contract.
//
// Each calls emit once per chunk, in order, and stops at the first error.
// Chunks passed to emit must not be retained after emit returns. Close
// releases the underlying resource; it is idempotent, and writers call it
// on every exit path.
type Body interface {
	Kind() BodyKind
	Each(emit func(chunk []byte) error) error
	// Size returns the total length in bytes, or -1 when unknown.
	Size() int64
	Close() error
}

// EmptyBody returns a buffered body without content.
func EmptyBody() Body { return BytesBody(nil) }

// BufferedBody returns a body over s.
func BufferedBody(s string) Body { return BytesBody([]byte(s)) }

// BytesBody returns a body over b. The slice is not copied.
func BytesBody(b []byte) Body { return &bufferedBody{data: b} }

type bufferedBody struct {
	data   []byte
	closed bool
}

func (b *bufferedBody) Kind() BodyKind { return Buffered }

func (b *bufferedBody) Size() int64 { return int64(len(b.data)) }

// Each emits the content split after every newline.
func (b *bufferedBody) Each(emit func([]byte) error) error {
	if b.closed {
		return ErrBodyClosed
	}
	rest := b.data
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		var line []byte
		if i < 0 {
			line, rest = rest, nil
		} else {
			line, rest = rest[:i+1], rest[i+1:]
		}
		if err := emit(line); err != nil {
			return err
		}
	}
	return nil
}

func (b *bufferedBody) Close() error {
	b.closed = true
	return nil
}

// Bytes returns the buffered content.
func (b *bufferedBody) Bytes() []byte { return b.data }

// ChunkedBody returns a body emitting the given chunks as-is.
func ChunkedBody(chunks ...[]byte) Body { return &sliceBody{chunks: chunks} }

// StringsBody returns a chunked body over strings.
func StringsBody(chunks ...string) Body {
	bs := make([][]byte, len(chunks))
	for i, c := range chunks {
		bs[i] = []byte(c)
	}
	return ChunkedBody(bs...)
}

type sliceBody struct {
	chunks [][]byte
	closed bool
}

func (b *sliceBody) Kind() BodyKind { return Chunked }

func (b *sliceBody) Size() int64 {
	var n int64
	for _, c := range b.chunks {
		n += int64(len(c))
	}
	return n
}

func (b *sliceBody) Each(emit func([]byte) error) error {
	if b.closed {
		return ErrBodyClosed
	}
	for _, c := range b.chunks {
		if len(c) == 0 {
			continue
		}
		if err := emit(c); err != nil {
			return err
		}
	}
	return nil
}

func (b *sliceBody) Close() error {
	b.closed = true
	return nil
}

// ReaderBody returns a chunked body reading from r. When r is an
// io.Closer it is closed exactly once by Close. size may be -1.
func ReaderBody(r io.Reader, size int64) Body {
	return &readerBody{r: r, size: size}
}

type readerBody struct {
	r    io.Reader
	size int64
	once sync.Once
	err  error
	done bool
}

func (b *readerBody) Kind() BodyKind { return Chunked }

func (b *readerBody) Size() int64 { return b.size }

func (b *readerBody) Each(emit func([]byte) error) error {
	if b.done {
		return ErrBodyClosed
	}
	buf := make([]byte, readChunkSize)
	for {
		n, err := b.r.Read(buf)
		if n > 0 {
			if emitErr := emit(buf[:n]); emitErr != nil {
				return emitErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (b *readerBody) Close() error {
	b.once.Do(func() {
		b.done = true
		if c, ok := b.r.(io.Closer); ok {
			b.err = c.Close()
		}
	})
	return b.err
}

// ProducerFunc writes a body into w. It is called synchronously by Each.
type ProducerFunc func(w io.Writer) error

// ProducerBody returns a body driven by fn. closer, when not nil, is
// released exactly once by Close.
func ProducerBody(fn ProducerFunc, closer io.Closer) Body {
	return &producerBody{fn: fn, closer: closer}
}

type producerBody struct {
	fn     ProducerFunc
	closer io.Closer
	once   sync.Once
	err    error
	done   bool
}

func (b *producerBody) Kind() BodyKind { return Producer }

func (b *producerBody) Size() int64 { return -1 }

func (b *producerBody) Each(emit func([]byte) error) error {
	if b.done {
		return ErrBodyClosed
	}
	return b.fn(sinkWriter(emit))
}

func (b *producerBody) Close() error {
	b.once.Do(func() {
		b.done = true
		if b.closer != nil {
			b.err = b.closer.Close()
		}
	})
	return b.err
}

// sinkWriter adapts an emit callback to io.Writer.
type sinkWriter func([]byte) error

func (s sinkWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := s(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ReadAll materializes body and closes it.
func ReadAll(body Body) ([]byte, error) {
	defer body.Close()
	if b, ok := body.(*bufferedBody); ok {
		return b.data, nil
	}
	var buf bytes.Buffer
	if n := body.Size(); n > 0 {
		buf.Grow(int(n))
	}
	err := body.Each(func(chunk []byte) error {
		buf.Write(chunk)
		return nil
	})
	return buf.Bytes(), err
}

// WriteBody emits every chunk of body into w and closes body, whether or
// not the write succeeds. flush, when not nil, is called after each chunk
// of a non-buffered body.
func WriteBody(w io.Writer, body Body, flush func() error) (err error) {
	defer func() {
		if cerr := body.Close(); err == nil {
			err = cerr
		}
	}()
	streaming := body.Kind() != Buffered && flush != nil
	return body.Each(func(chunk []byte) error {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		if streaming {
			return flush()
		}
		return nil
	})
}
