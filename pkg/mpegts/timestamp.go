// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "github.com/q191201771/lalts/pkg/base"

// ----------------------------------------------------------
// PTS/DTS 5字节
// '0010' or '0011' or '0001' [4b] prefix
// PTS [32..30]               [3b]
// marker_bit                 [1b]
// PTS [29..15]               [15b]
// marker_bit                 [1b]
// PTS [14..0]                [15b]
// marker_bit                 [1b]
// ----------------------------------------------------------

const (
	PtsDtsPrefixPtsOnly = 2
	PtsDtsPrefixPts     = 3
	PtsDtsPrefixDts     = 1
)

// ReadTimestamp 读取PTS或DTS，同时校验三个marker bit以及prefix
//
// @return prefix: 高4位的'001x'
func ReadTimestamp(b []byte) (ts Uint33, prefix uint8, err error) {
	if len(b) < 5 {
		return 0, 0, base.NewErrShortBuffer(5, len(b), "pts")
	}
	prefix = b[0] >> 4
	if b[0]&0x01 != 1 || b[2]&0x01 != 1 || b[4]&0x01 != 1 {
		return 0, prefix, base.ErrPtsMarker
	}
	if prefix < 1 || prefix > 3 {
		return 0, prefix, base.ErrPtsMarker
	}
	v := (uint64(b[0]&0x0e) << 29) |
		(uint64(b[1]) << 22) |
		(uint64(b[2]&0xfe) << 14) |
		(uint64(b[3]) << 7) |
		(uint64(b[4]) >> 1)
	return NewUint33(v), prefix, nil
}

// WriteTimestamp 写入PTS或DTS，prefix通常沿用读取时的值
func WriteTimestamp(out []byte, prefix uint8, ts Uint33) {
	v := ts.Value()
	out[0] = (prefix << 4) | (uint8(v>>30)&0x07)<<1 | 1
	out[1] = uint8(v >> 22)
	out[2] = (uint8(v>>15)&0x7f)<<1 | 1
	out[3] = uint8(v >> 7)
	out[4] = (uint8(v)&0x7f)<<1 | 1
}

// ----------------------------------------------------------
// program_clock_reference_base      [33b]
// reserved                          [6b]
// program_clock_reference_extension [9b]
// ----------------------------------------------------------

// ReadPcr 读取6字节PCR中的33位base部分，b指向program_clock_reference_base
func ReadPcr(b []byte) Uint33 {
	v := uint64(b[0])<<25 |
		uint64(b[1])<<17 |
		uint64(b[2])<<9 |
		uint64(b[3])<<1 |
		uint64(b[4])>>7
	return NewUint33(v)
}

// WritePcr 写入PCR base
//
// @param clearExtension: 为true时同时把reserved置1、extension清零，
//                        高倍速播放时原extension已经没有意义
func WritePcr(out []byte, pcr Uint33, clearExtension bool) {
	v := pcr.Value()
	out[0] = uint8(v >> 25)
	out[1] = uint8(v >> 17)
	out[2] = uint8(v >> 9)
	out[3] = uint8(v >> 1)
	if clearExtension {
		out[4] = uint8(v&1)<<7 | 0x7e
		out[5] = 0
	} else {
		out[4] = uint8(v&1)<<7 | (out[4] & 0x7f)
	}
}
