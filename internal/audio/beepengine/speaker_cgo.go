//go:build (linux && cgo) || windows || darwin

package beepengine

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2/speaker"
	spoolerrors "github.com/tessro/spool/internal/errors"
)

// Available reports whether this build can open an audio device.
const Available = true

type speakerLock struct{}

func (speakerLock) Lock()   { speaker.Lock() }
func (speakerLock) Unlock() { speaker.Unlock() }

// New opens the default audio device and starts streaming from an empty
// track list.
func New(opts ...Option) (*Engine, error) {
	if err := speaker.Init(SampleRate, SampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("%w: %v", spoolerrors.ErrAudioUnavailable, err)
	}
	e := newEngine(speakerLock{}, SampleRate, opts...)
	e.release = speaker.Clear
	speaker.Play(e)
	return e, nil
}
