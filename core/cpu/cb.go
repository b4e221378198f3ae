package cpu

// CB-prefixed opcodes are fully regular: bits 7-6 select the operation
// group (rotate/shift, BIT, RES, SET), bits 5-3 select the bit index (or
// rotate/shift kind), bits 2-0 select the operand register ((HL) at z==6).

func decodeCB(c *CPU, opcode uint8) {
	x := opcode >> 6
	y := (opcode >> 3) & 0x07
	z := opcode & 0x07

	if z == 6 {
		switch x {
		case 0:
			c.queue = append(c.queue,
				func(c *CPU) { c.tmp8 = cbRotateOp(c, y, c.bus.Read(c.hl())) },
				func(c *CPU) { c.bus.Write(c.hl(), c.tmp8) },
			)
		case 1:
			c.queue = append(c.queue, func(c *CPU) { c.bitTest(y, c.bus.Read(c.hl())) })
		case 2:
			c.queue = append(c.queue,
				func(c *CPU) { c.tmp8 = resBit(y, c.bus.Read(c.hl())) },
				func(c *CPU) { c.bus.Write(c.hl(), c.tmp8) },
			)
		case 3:
			c.queue = append(c.queue,
				func(c *CPU) { c.tmp8 = setBit(y, c.bus.Read(c.hl())) },
				func(c *CPU) { c.bus.Write(c.hl(), c.tmp8) },
			)
		}
		return
	}

	reg := c.reg8(z)
	switch x {
	case 0:
		*reg = cbRotateOp(c, y, *reg)
	case 1:
		c.bitTest(y, *reg)
	case 2:
		*reg = resBit(y, *reg)
	case 3:
		*reg = setBit(y, *reg)
	}
}

func cbRotateOp(c *CPU, y uint8, v uint8) uint8 {
	switch y {
	case 0:
		return c.rlc(v)
	case 1:
		return c.rrc(v)
	case 2:
		return c.rl(v)
	case 3:
		return c.rr(v)
	case 4:
		return c.sla(v)
	case 5:
		return c.sra(v)
	case 6:
		return c.swap(v)
	default:
		return c.srl(v)
	}
}
