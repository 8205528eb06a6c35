// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "fmt"

// Uint33 33位的90kHz时钟值，PTS/DTS/PCR base都用它表示
//
// 所有加减法都对2^33取模。
// 比较大小不能直接比较数值，需要使用 Before / After ，
// 它们把差值在半个周期以内的视为"在前/在后"，从而正确处理回绕。
type Uint33 uint64

const (
	uint33Mask uint64 = (1 << 33) - 1

	// Uint33Max 33位能表示的最大值，也常用作"未设置"的哨兵值
	Uint33Max = Uint33(uint33Mask)

	// Uint33HalfMax 判断回绕的窗口，取 Uint33Max/2 即 2^32-1，而不是 2^32
	//
	// 差值恰好为 2^32 时两个方向都不算"之后"
	Uint33HalfMax = Uint33(uint33Mask / 2)
)

func NewUint33(v uint64) Uint33 {
	return Uint33(v & uint33Mask)
}

func (u Uint33) Value() uint64 {
	return uint64(u) & uint33Mask
}

func (u Uint33) Add(v Uint33) Uint33 {
	return NewUint33(uint64(u) + uint64(v))
}

func (u Uint33) Sub(v Uint33) Uint33 {
	return NewUint33(uint64(u) - uint64(v))
}

// Before u是否在v之前，即从u向前走不超过半个周期能到达v
func (u Uint33) Before(v Uint33) bool {
	d := v.Sub(u)
	return d != 0 && d <= Uint33HalfMax
}

func (u Uint33) After(v Uint33) bool {
	return v.Before(u)
}

// Delta 有符号的差值u-v，按回绕后的最短距离计算
func (u Uint33) Delta(v Uint33) int64 {
	d := u.Sub(v)
	if d <= Uint33HalfMax {
		return int64(d)
	}
	return int64(d) - int64(uint33Mask) - 1
}

func (u Uint33) Seconds() float64 {
	return float64(u.Value()) / 90000.0
}

func (u Uint33) String() string {
	return fmt.Sprintf("%d(0x%09x)", u.Value(), u.Value())
}
