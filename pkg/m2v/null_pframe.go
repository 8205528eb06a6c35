// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package m2v

import (
	"fmt"

	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/lalts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/nazabits"
)

// 空P帧：所有宏块都是skip，用于I帧快进快退时填充帧间隔
//
// ES布局:
//
// PES header(带PTS DTS) | picture header(P) | picture coding extension | slice * 宏块行数
//
// 每个slice:
// 00 00 01 <row> | quantiser_scale_code(00001) | extra_bit_slice(0) |
// macroblock_address_increment(1) | macroblock_type(001) | motion_code(1)(1) |
// macroblock_address_increment(宽度-1) | macroblock_type(001) | motion_code(1)(1) | 至少1比特的0

var nullPFrameEsHeader = []byte{
	0x00, 0x00, 0x01, 0xe0, 0x00, 0x00, 0x84, 0xc0, 0x0a,
	0x31, 0x00, 0x01, 0x00, 0x01, // PTS
	0x11, 0x00, 0x01, 0x00, 0x01, // DTS
	0x00, 0x00, 0x01, 0x00, 0x01, 0xd7, 0xff, 0xfb, 0x80,
	0x00, 0x00, 0x01, 0xb5, 0x83, 0x3f, 0xf3, 0x5d, 0x80,
}

const (
	nullPFramePtsPos = 9
	nullPFrameDtsPos = 14
)

type vlcCode struct {
	numBits uint
	code    uint16
}

// macroblock_address_increment 1~33，最后一个是escape(+33)
var macroblockAddressIncrementCodes = [34]vlcCode{
	{1, 0x001}, {3, 0x003}, {3, 0x002}, {4, 0x003}, {4, 0x002}, {5, 0x003}, {5, 0x002},
	{7, 0x007}, {7, 0x006}, {8, 0x00b}, {8, 0x00a}, {8, 0x009}, {8, 0x008}, {8, 0x007},
	{8, 0x006}, {10, 0x017}, {10, 0x016}, {10, 0x015}, {10, 0x014}, {10, 0x013}, {10, 0x012},
	{11, 0x023}, {11, 0x022}, {11, 0x021}, {11, 0x020}, {11, 0x01f}, {11, 0x01e}, {11, 0x01d},
	{11, 0x01c}, {11, 0x01b}, {11, 0x01a}, {11, 0x019}, {11, 0x018},
	{11, 0x008},
}

const macroblockAddressIncrementEscape = 33

type NullPFrame struct {
	Width   int
	Height  int
	Pid     uint16
	TtsSize int

	raw    []byte // 打包好的TS，CC为0
	ptsPos int
	dtsPos int
}

// NewNullPFrame
//
// @param width, height: 来自sequence header的像素宽高
func NewNullPFrame(width, height int, pid uint16, ttsSize int) (*NullPFrame, error) {
	mbWidth := (width + MacroblockSize - 1) / MacroblockSize
	mbHeight := (height + MacroblockSize - 1) / MacroblockSize
	if mbWidth < 2 || mbHeight < 1 {
		return nil, fmt.Errorf("%w. invalid frame size. width=%d, height=%d", base.ErrM2v, width, height)
	}

	slice := buildSkipSlice(mbWidth)
	es := make([]byte, 0, len(nullPFrameEsHeader)+len(slice)*mbHeight)
	es = append(es, nullPFrameEsHeader...)
	for row := 1; row <= mbHeight; row++ {
		slice[3] = uint8(row)
		es = append(es, slice...)
	}

	f := &NullPFrame{
		Width:   width,
		Height:  height,
		Pid:     pid,
		TtsSize: ttsSize,
	}
	var payloadStart int
	f.raw, payloadStart = packVideoEs(es, pid, ttsSize)
	f.ptsPos = payloadStart + nullPFramePtsPos
	f.dtsPos = payloadStart + nullPFrameDtsPos
	return f, nil
}

// Pack 复制一份TS数据，写入PTS(DTS与PTS相同)以及从cc开始连续递增的CC
//
// @return nextCc: 下一个packet应该使用的CC
func (f *NullPFrame) Pack(pts mpegts.Uint33, cc uint8) (out []byte, nextCc uint8) {
	out = make([]byte, len(f.raw))
	copy(out, f.raw)
	mpegts.WriteTimestamp(out[f.ptsPos:], mpegts.PtsDtsPrefixPts, pts)
	mpegts.WriteTimestamp(out[f.dtsPos:], mpegts.PtsDtsPrefixDts, pts)

	packetSize := f.TtsSize + mpegts.PacketSize
	for i := 0; i+packetSize <= len(out); i += packetSize {
		mpegts.SetCc(out[i+f.TtsSize:], cc)
		cc = (cc + 1) & 0x0f
	}
	return out, cc
}

func (f *NullPFrame) Len() int {
	return len(f.raw)
}

func buildSkipSlice(mbWidth int) []byte {
	skip := mbWidth - 1
	escapeCount := 0
	for skip > macroblockAddressIncrementEscape {
		escapeCount++
		skip -= macroblockAddressIncrementEscape
	}
	code := macroblockAddressIncrementCodes[skip-1]
	escape := macroblockAddressIncrementCodes[macroblockAddressIncrementEscape]

	bitLen := 32 + 12 + escapeCount*int(escape.numBits) + int(code.numBits) + 5
	if bitLen%8 == 0 {
		bitLen++
	}
	slice := make([]byte, (bitLen+7)/8)

	bw := nazabits.NewBitWriter(slice)
	bw.WriteBits8(8, 0x00)
	bw.WriteBits8(8, 0x00)
	bw.WriteBits8(8, 0x01)
	bw.WriteBits8(8, 0x01) // slice_vertical_position，每行覆盖

	bw.WriteBits8(5, 0x01) // quantiser_scale_code
	bw.WriteBit(0)         // extra_bit_slice
	bw.WriteBit(1)         // macroblock_address_increment = 1
	writeSkippedMacroblock(&bw)

	for i := 0; i < escapeCount; i++ {
		bw.WriteBits16(escape.numBits, escape.code)
	}
	bw.WriteBits16(code.numBits, code.code)
	writeSkippedMacroblock(&bw)
	return slice
}

// macroblock_type MC not coded, 水平和垂直motion_code都为0
func writeSkippedMacroblock(bw *nazabits.BitWriter) {
	bw.WriteBits8(3, 0x01)
	bw.WriteBit(1)
	bw.WriteBit(1)
}

// packVideoEs 把完整的ES切成TS packet，最后一个packet用adaptation field填充
//
// @return payloadStart: 第一个packet中payload的起始位置
func packVideoEs(es []byte, pid uint16, ttsSize int) (out []byte, payloadStart int) {
	const maxPayload = mpegts.PacketSize - mpegts.PacketHeaderSize
	first := true
	for len(es) > 0 {
		packet := make([]byte, ttsSize+mpegts.PacketSize)
		h := packet[ttsSize:]
		h[0] = 0x47
		h[1] = uint8(pid>>8) & 0x1f
		if first {
			h[1] |= 0x40
		}
		h[2] = uint8(pid)
		h[3] = 0x10

		pos := mpegts.PacketHeaderSize
		n := len(es)
		if n >= maxPayload {
			n = maxPayload
		} else {
			// adaptation field填充
			h[3] |= 0x20
			afLen := maxPayload - n - 1
			h[4] = uint8(afLen)
			if afLen > 0 {
				h[5] = 0x00
				for i := 6; i < 5+afLen; i++ {
					h[i] = 0xff
				}
			}
			pos += 1 + afLen
		}
		if first {
			payloadStart = ttsSize + pos
			first = false
		}
		copy(h[pos:], es[:n])
		es = es[n:]
		out = append(out, packet...)
	}
	return out, payloadStart
}
