// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"github.com/q191201771/lalts/pkg/base"
)

// BitCursor 在ByteStore上按比特读写，支持Exp-Golomb
//
// 所有读写都检查边界，越界返回 base.ErrBitstreamEnd，不会panic
type BitCursor struct {
	s      base.ByteStore
	pos    int // 当前比特位置
	endBit int
}

// NewBitCursor 从byteOffset开始，到end字节（不含）为止
func NewBitCursor(s base.ByteStore, byteOffset int, end int) *BitCursor {
	if end > s.Len() {
		end = s.Len()
	}
	return &BitCursor{
		s:      s,
		pos:    byteOffset * 8,
		endBit: end * 8,
	}
}

func (c *BitCursor) BitPos() int {
	return c.pos
}

func (c *BitCursor) Seek(bitPos int) {
	c.pos = bitPos
}

// BytePos 当前所在字节
func (c *BitCursor) BytePos() int {
	return c.pos / 8
}

func (c *BitCursor) RemainBits() int {
	return c.endBit - c.pos
}

func (c *BitCursor) ReadBit() (uint8, error) {
	if c.pos >= c.endBit {
		return 0, base.ErrBitstreamEnd
	}
	b := c.s.ByteAt(c.pos / 8)
	v := (b >> (7 - uint(c.pos%8))) & 1
	c.pos++
	return v, nil
}

// ReadBits n不能超过32
func (c *BitCursor) ReadBits(n int) (uint32, error) {
	if n > 32 || c.pos+n > c.endBit {
		return 0, base.ErrBitstreamEnd
	}
	var v uint32
	for i := 0; i < n; i++ {
		bit, _ := c.ReadBit()
		v = (v << 1) | uint32(bit)
	}
	return v, nil
}

func (c *BitCursor) SkipBits(n int) error {
	if c.pos+n > c.endBit {
		return base.ErrBitstreamEnd
	}
	c.pos += n
	return nil
}

// ReadUe ue(v)
func (c *BitCursor) ReadUe() (uint32, error) {
	leadingZeros := 0
	for {
		bit, err := c.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		leadingZeros++
		if leadingZeros > 31 {
			return 0, base.ErrGolombTooLong
		}
	}
	if leadingZeros == 0 {
		return 0, nil
	}
	v, err := c.ReadBits(leadingZeros)
	if err != nil {
		return 0, err
	}
	return (1<<uint(leadingZeros) - 1) + v, nil
}

// ReadSe se(v)
func (c *BitCursor) ReadSe() (int32, error) {
	u, err := c.ReadUe()
	if err != nil {
		return 0, err
	}
	n := int32((u + 1) >> 1)
	if u&1 == 0 {
		n = -n
	}
	return n, nil
}

// PutBits 在当前位置写入v的低n位，高位在前
func (c *BitCursor) PutBits(n int, v uint32) error {
	if n > 32 || c.pos+n > c.endBit {
		return base.ErrBitstreamEnd
	}
	for i := n - 1; i >= 0; i-- {
		idx := c.pos / 8
		mask := byte(0x80) >> uint(c.pos%8)
		b := c.s.ByteAt(idx) &^ mask
		if (v>>uint(i))&1 == 1 {
			b |= mask
		}
		c.s.SetByteAt(idx, b)
		c.pos++
	}
	return nil
}
