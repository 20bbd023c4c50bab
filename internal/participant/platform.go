package participant

import (
	"errors"
	"sync"
)

// ErrFullscreenUnsupported is returned by a platform that refuses fullscreen.
var ErrFullscreenUnsupported = errors.New("fullscreen not permitted")

// HeadlessPlatform simulates a device for the terminal client. Fullscreen
// and keep-awake are plain flags the operator toggles with commands.
type HeadlessPlatform struct {
	mu             sync.Mutex
	denyFullscreen bool
	fullscreen     bool
	awake          bool
}

// NewHeadlessPlatform creates a platform that grants fullscreen unless deny
// is set.
func NewHeadlessPlatform(deny bool) *HeadlessPlatform {
	return &HeadlessPlatform{denyFullscreen: deny}
}

func (p *HeadlessPlatform) RequestFullscreen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denyFullscreen {
		return ErrFullscreenUnsupported
	}
	p.fullscreen = true
	return nil
}

func (p *HeadlessPlatform) ExitFullscreen() {
	p.mu.Lock()
	p.fullscreen = false
	p.mu.Unlock()
}

func (p *HeadlessPlatform) IsFullscreen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fullscreen
}

func (p *HeadlessPlatform) AcquireWakeLock() error {
	p.mu.Lock()
	p.awake = true
	p.mu.Unlock()
	return nil
}

func (p *HeadlessPlatform) ReleaseWakeLock() {
	p.mu.Lock()
	p.awake = false
	p.mu.Unlock()
}

// Awake reports whether keep-awake is held.
func (p *HeadlessPlatform) Awake() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.awake
}
