//go:build sdl2

package video

import (
	"fmt"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
)

// Screen is a minimal SDL2 window that blits a FrameBuffer each Draw call.
// Building with this file requires SDL2 development libraries; default
// builds (no sdl2 tag) use the terminal renderer in core/render instead.
type Screen struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	scale    int
}

// NewScreen creates an SDL2 window sized to FramebufferWidth/Height*scale.
func NewScreen(title string, scale int) (*Screen, error) {
	if scale <= 0 {
		scale = 1
	}
	window, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(FramebufferWidth*scale), int32(FramebufferHeight*scale),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, fmt.Errorf("creating sdl window: %w", err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		return nil, fmt.Errorf("creating sdl renderer: %w", err)
	}

	return &Screen{window: window, renderer: renderer, scale: scale}, nil
}

// Draw blits frame to the window, scaling to fill it.
func (s *Screen) Draw(frame *FrameBuffer) error {
	pixels := frame.ToSlice()

	surface, err := sdl.CreateRGBSurfaceFrom(
		unsafe.Pointer(&pixels[0]),
		FramebufferWidth,
		FramebufferHeight,
		32,
		4*FramebufferWidth,
		0x000000FF,
		0x0000FF00,
		0x00FF0000,
		0xFF000000)
	if err != nil {
		return fmt.Errorf("creating sdl surface: %w", err)
	}
	defer surface.Free()

	tex, err := s.renderer.CreateTextureFromSurface(surface)
	if err != nil {
		return fmt.Errorf("creating sdl texture: %w", err)
	}
	defer tex.Destroy()

	s.renderer.Clear()
	s.renderer.Copy(tex, nil, nil)
	s.renderer.Present()
	return nil
}

// Destroy releases the window and renderer.
func (s *Screen) Destroy() {
	s.renderer.Destroy()
	s.window.Destroy()
}
