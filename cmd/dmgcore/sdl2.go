//go:build sdl2

package main

import (
	"github.com/ashgrove-dev/dmgcore/core"
	"github.com/ashgrove-dev/dmgcore/core/render"
)

func runSDL2(emu *core.Emulator) error {
	renderer, err := render.NewSDL2Renderer(emu)
	if err != nil {
		return err
	}
	return renderer.Run()
}
