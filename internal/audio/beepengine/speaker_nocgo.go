//go:build !((linux && cgo) || windows || darwin)

package beepengine

import spoolerrors "github.com/tessro/spool/internal/errors"

// Available reports whether this build can open an audio device. Audio
// output needs cgo for the native sound libraries.
const Available = false

// New always fails in builds without audio output.
func New(...Option) (*Engine, error) {
	return nil, spoolerrors.ErrAudioUnavailable
}
