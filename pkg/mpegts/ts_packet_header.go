// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/naza/pkg/nazabits"
)

// ------------------------------------------------
// <iso13818-1.pdf> <2.4.3.2> <page 36/174>
// sync_byte                    [8b]  * always 0x47
// transport_error_indicator    [1b]
// payload_unit_start_indicator [1b]
// transport_priority           [1b]
// PID                          [13b] **
// transport_scrambling_control [2b]
// adaptation_field_control     [2b]
// continuity_counter           [4b]  *
// ------------------------------------------------
type TsPacketHeader struct {
	Sync             uint8
	Err              uint8
	PayloadUnitStart uint8
	Prio             uint8
	Pid              uint16
	Scra             uint8
	Adaptation       uint8
	Cc               uint8
}

// adaptation_field_control
const (
	AdaptationPayloadOnly uint8 = 0x01
	AdaptationFieldOnly   uint8 = 0x02
	AdaptationBoth        uint8 = 0x03
)

func (h *TsPacketHeader) HasPayload() bool {
	return h.Adaptation&AdaptationPayloadOnly != 0
}

func (h *TsPacketHeader) HasAdaptationField() bool {
	return h.Adaptation&AdaptationFieldOnly != 0
}

func (h *TsPacketHeader) IsPayloadUnitStart() bool {
	return h.PayloadUnitStart == 1
}

// ----------------------------------------------------------
// <iso13818-1.pdf> <Table 2-6> <page 40/174>
// adaptation_field_length              [8b] * 不包括自己这1字节
// discontinuity_indicator              [1b]
// random_access_indicator              [1b]
// elementary_stream_priority_indicator [1b]
// PCR_flag                             [1b]
// OPCR_flag                            [1b]
// splicing_point_flag                  [1b]
// transport_private_data_flag          [1b]
// adaptation_field_extension_flag      [1b] *
// -----if PCR_flag == 1-----
// program_clock_reference_base         [33b]
// reserved                             [6b]
// program_clock_reference_extension    [9b] ******
// ----------------------------------------------------------
type TsPacketAdaptation struct {
	Length        uint8
	Discontinuity uint8
	RandomAccess  uint8
	PcrFlag       uint8
	Pcr           Uint33 // 仅当PcrFlag为1时有效
}

// ParseTsPacketHeader 解析4字节TS Packet header
func ParseTsPacketHeader(b []byte) (h TsPacketHeader, err error) {
	if len(b) < PacketHeaderSize {
		return h, base.NewErrShortBuffer(PacketHeaderSize, len(b), "ts packet header")
	}
	br := nazabits.NewBitReader(b)
	h.Sync, _ = br.ReadBits8(8)
	h.Err, _ = br.ReadBits8(1)
	h.PayloadUnitStart, _ = br.ReadBits8(1)
	h.Prio, _ = br.ReadBits8(1)
	h.Pid, _ = br.ReadBits16(13)
	h.Scra, _ = br.ReadBits8(2)
	h.Adaptation, _ = br.ReadBits8(2)
	h.Cc, _ = br.ReadBits8(4)
	return
}

// ParseTsPacketAdaptation b指向adaptation_field_length
func ParseTsPacketAdaptation(b []byte) (f TsPacketAdaptation, err error) {
	if len(b) < 1 {
		return f, base.NewErrShortBuffer(1, len(b), "adaptation field")
	}
	f.Length = b[0]
	if f.Length == 0 {
		return
	}
	if len(b) < 1+int(f.Length) {
		return f, base.NewErrShortBuffer(1+int(f.Length), len(b), "adaptation field")
	}
	br := nazabits.NewBitReader(b[1:])
	f.Discontinuity, _ = br.ReadBits8(1)
	f.RandomAccess, _ = br.ReadBits8(1)
	_, _ = br.ReadBits8(1)
	f.PcrFlag, _ = br.ReadBits8(1)
	if f.PcrFlag == 1 {
		if f.Length < 7 {
			return f, base.NewErrShortBuffer(7, int(f.Length), "pcr")
		}
		f.Pcr = ReadPcr(b[2:])
	}
	return
}

// PayloadOffset payload相对于packet起始（不含TTS前缀）的偏移
//
// 只有adaptation时返回 PacketSize
func PayloadOffset(packet []byte) int {
	offset := PacketHeaderSize
	if packet[3]&0x20 != 0 {
		offset += 1 + int(packet[4])
	}
	if packet[3]&0x10 == 0 || offset > PacketSize {
		return PacketSize
	}
	return offset
}

// Pid 直接从packet中取出PID，不做完整解析
func Pid(packet []byte) uint16 {
	return uint16(packet[1]&0x1f)<<8 | uint16(packet[2])
}

func IsPayloadUnitStart(packet []byte) bool {
	return packet[1]&0x40 != 0
}

func HasPayload(packet []byte) bool {
	return packet[3]&0x10 != 0
}

// HasPcr packet的adaptation中是否携带PCR
func HasPcr(packet []byte) bool {
	return packet[3]&0x20 != 0 && packet[4] > 0 && packet[5]&0x10 != 0
}

func SetCc(packet []byte, cc uint8) {
	packet[3] = (packet[3] & 0xf0) | (cc & 0x0f)
}

// NullPacket 把packet的PID改为0x1fff，下游会直接丢弃
func NullPacket(packet []byte) {
	packet[1] = (packet[1] & 0xe0) | 0x1f
	packet[2] = 0xff
}
