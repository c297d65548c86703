package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrRecorderClosed is returned by WriteFrame after Close.
var ErrRecorderClosed = errors.New("recorder closed")

const (
	recordingBitDepth = 16
	recordingChannels = 1
	wavFormatPCM      = 1
)

// RecordingPath returns a timestamped file name inside dir.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "capture-"+now.Format("20060102-150405")+".wav")
}

// Recorder writes analysed frames to a 16-bit mono WAV file. It implements
// the pipeline's frame tap and is safe to close from another goroutine.
type Recorder struct {
	path string

	mu         sync.Mutex
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reusable buffer for format conversion
	frames     int64
}

// NewRecorder creates the file at path, and any missing parent directories,
// and prepares a WAV encoder for mono 16-bit audio at sampleRate.
func NewRecorder(path string, sampleRate int) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	return &Recorder{
		path:       path,
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, sampleRate, recordingBitDepth, recordingChannels, wavFormatPCM),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: recordingChannels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: recordingBitDepth,
		},
	}, nil
}

// Path returns the output file path.
func (r *Recorder) Path() string { return r.path }

// Samples returns the number of samples written so far.
func (r *Recorder) Samples() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// WriteFrame appends samples to the file.
func (r *Recorder) WriteFrame(samples []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder == nil {
		return ErrRecorderClosed
	}

	if cap(r.sampleBuf.Data) < len(samples) {
		r.sampleBuf.Data = make([]int, len(samples))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(samples)]
	for i, s := range samples {
		r.sampleBuf.Data[i] = int(s)
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("error writing to WAV file: %w", err)
	}
	r.frames += int64(len(samples))
	return nil
}

// Close finalizes the WAV header and closes the file. Closing twice is a
// no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder == nil {
		return nil
	}

	encErr := r.wavEncoder.Close()
	r.wavEncoder = nil
	fileErr := r.outputFile.Close()
	r.outputFile = nil

	if err := errors.Join(encErr, fileErr); err != nil {
		return fmt.Errorf("failed to finalize recording %s: %w", r.path, err)
	}
	return nil
}
