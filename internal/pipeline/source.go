package pipeline

// Source is a capture device the pipeline can switch to.
//
// Start begins delivering raw signed 16-bit little-endian mono bytes to onData
// from the device's own callback goroutine. The slice is only valid during the
// call. onError reports a failure after a successful Start, such as the device
// being unplugged; the source must not call onData afterwards.
//
// Stop releases the device. It is only called after a successful Start and
// must not return until no further onData calls can happen.
type Source interface {
	Name() string
	Start(onData func([]byte), onError func(error)) error
	Stop() error
}

// FrameTap receives the samples of every frame read from the capture buffer,
// e.g. to record what was analysed.
type FrameTap interface {
	WriteFrame(samples []int16) error
}
