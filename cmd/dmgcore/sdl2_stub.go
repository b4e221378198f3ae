//go:build !sdl2

package main

import (
	"errors"

	"github.com/ashgrove-dev/dmgcore/core"
)

func runSDL2(emu *core.Emulator) error {
	return errors.New("built without SDL2 support: rebuild with -tags sdl2")
}
