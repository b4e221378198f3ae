package core

import "testing"

// BenchmarkEmulatorWithSnapshot exercises RunUntilFrame plus the per-frame
// overhead of pulling a framebuffer copy, the closest in-tree proxy for the
// per-frame cost a rendering backend adds on top of pure emulation.
func BenchmarkEmulatorWithSnapshot(b *testing.B) {
	testCases := []struct {
		name   string
		path   string
		frames int
	}{
		{"dmg_acid_100", "../test-roms/dmg-acid2.gb", 100},
		{"dmg_acid_1000", "../test-roms/dmg-acid2.gb", 1000},
	}

	for _, tc := range testCases {
		b.Run(tc.name, func(b *testing.B) {
			emu, err := NewWithFile(tc.path)
			if err != nil {
				b.Fatalf("Failed to create emulator: %v", err)
			}
			emu.SetFrameLimiter(nil)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				for frameCount := 0; frameCount < tc.frames; frameCount++ {
					emu.RunUntilFrame()
					_ = emu.GetCurrentFrame().ToSlice()
				}
			}
		})
	}
}
