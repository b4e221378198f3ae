//go:build sdl2

package render

import (
	"fmt"
	"log/slog"

	"github.com/veandco/go-sdl2/sdl"
	"github.com/ashgrove-dev/dmgcore/core"
	"github.com/ashgrove-dev/dmgcore/core/memory"
	"github.com/ashgrove-dev/dmgcore/core/video"
)

const sdl2Scale = 3

// SDL2Renderer drives emulation behind a real SDL2 window. Building it
// requires SDL2 development libraries (build tag sdl2); the terminal
// renderer is the default, dependency-free fallback.
type SDL2Renderer struct {
	screen   *video.Screen
	emulator *core.Emulator
	running  bool
}

// NewSDL2Renderer opens an SDL2 window sized for the Game Boy framebuffer.
func NewSDL2Renderer(emu *core.Emulator) (*SDL2Renderer, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("initializing sdl2: %w", err)
	}

	screen, err := video.NewScreen("dmgcore", sdl2Scale)
	if err != nil {
		sdl.Quit()
		return nil, err
	}

	return &SDL2Renderer{screen: screen, emulator: emu, running: true}, nil
}

// Run drives the emulator and window until the user closes it.
func (r *SDL2Renderer) Run() error {
	defer func() {
		r.screen.Destroy()
		sdl.Quit()
	}()

	for r.running {
		r.pollEvents()
		if !r.running {
			break
		}

		r.emulator.RunUntilFrame()
		if err := r.screen.Draw(r.emulator.GetCurrentFrame()); err != nil {
			return err
		}
	}

	return nil
}

func (r *SDL2Renderer) pollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			r.running = false
		case *sdl.KeyboardEvent:
			r.handleKey(e)
		}
	}
}

func (r *SDL2Renderer) handleKey(e *sdl.KeyboardEvent) {
	key, ok := sdlKeyToJoypad(e.Keysym.Sym)
	if !ok {
		if e.Keysym.Sym == sdl.K_ESCAPE && e.State == sdl.PRESSED {
			r.running = false
		}
		return
	}

	switch e.State {
	case sdl.PRESSED:
		r.emulator.HandleKeyPress(key)
	case sdl.RELEASED:
		r.emulator.HandleKeyRelease(key)
	default:
		slog.Debug("Unhandled SDL2 key event state", "state", e.State)
	}
}

func sdlKeyToJoypad(sym sdl.Keycode) (memory.JoypadKey, bool) {
	switch sym {
	case sdl.K_RETURN:
		return memory.JoypadStart, true
	case sdl.K_BACKSPACE:
		return memory.JoypadSelect, true
	case sdl.K_RIGHT:
		return memory.JoypadRight, true
	case sdl.K_LEFT:
		return memory.JoypadLeft, true
	case sdl.K_UP:
		return memory.JoypadUp, true
	case sdl.K_DOWN:
		return memory.JoypadDown, true
	case sdl.K_a:
		return memory.JoypadA, true
	case sdl.K_s:
		return memory.JoypadB, true
	default:
		return 0, false
	}
}
