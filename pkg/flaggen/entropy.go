// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flaggen

import (
	"encoding/binary"
	"math/rand"
)

// EntropySize is enough bytes to instantiate the largest record.
const EntropySize = 4096

// Entropy hands out choices from a fixed byte buffer.
// Once the buffer is exhausted every choice is 0, so instantiation never fails.
type Entropy struct {
	data []byte
	pos  int
}

func NewEntropy(data []byte) *Entropy {
	return &Entropy{data: data}
}

func RandomEntropy(rnd *rand.Rand) *Entropy {
	data := make([]byte, EntropySize)
	rnd.Read(data)
	return NewEntropy(data)
}

func (e *Entropy) Remaining() int {
	return len(e.data) - e.pos
}

// Choose returns a value in [0, n).
func (e *Entropy) Choose(n int) int {
	if n <= 1 {
		return 0
	}
	if n <= 1<<8 {
		return int(e.byte()) % n
	}
	var buf [4]byte
	for i := range buf {
		buf[i] = e.byte()
	}
	return int(binary.LittleEndian.Uint32(buf[:]) % uint32(n))
}

func (e *Entropy) Bool() bool {
	return e.byte()&1 == 1
}

func (e *Entropy) byte() byte {
	if e.pos >= len(e.data) {
		return 0
	}
	b := e.data[e.pos]
	e.pos++
	return b
}
