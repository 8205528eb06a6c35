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

// -----------------------------------------------------------
// <iso13818-1.pdf>
// <2.4.3.6 PES packet> <page 49/174>
// <Table E.1 - PES packet header example> <page 142/174>
// <F.0.2 PES packet> <page 144/174>
// packet_start_code_prefix  [24b] *** always 0x00, 0x00, 0x01
// stream_id                 [8b]  *
// PES_packet_length         [16b] **
// '10'                      [2b]
// PES_scrambling_control    [2b]
// PES_priority              [1b]
// data_alignment_indicator  [1b]
// copyright                 [1b]
// original_or_copy          [1b]  *
// PTS_DTS_flags             [2b]
// ESCR_flag                 [1b]
// ES_rate_flag              [1b]
// DSM_trick_mode_flag       [1b]
// additional_copy_info_flag [1b]
// PES_CRC_flag              [1b]
// PES_extension_flag        [1b]  *
// PES_header_data_length    [8b]  *
// -----------------------------------------------------------

// PesFixedHeaderSize 到PES_header_data_length为止的长度
const PesFixedHeaderSize = 9

type Pes struct {
	Sid        uint8
	Length     uint16 // PES_packet_length
	Optional   bool   // 是否存在从'10'开始的可选头
	PtsDtsFlag uint8
	CrcFlag    bool
	HeaderLen  uint8 // PES_header_data_length

	HasPts bool
	Pts    Uint33
	PtsErr error // PTS_DTS_flags声明了PTS但marker校验失败

	HasDts bool
	Dts    Uint33
}

// HasPesStartCode b是否以 00 00 01 开头
func HasPesStartCode(b []byte) bool {
	return len(b) >= 3 && b[0] == 0x00 && b[1] == 0x00 && b[2] == 0x01
}

// ParsePes 解析PES头
//
// @return length: PES头的长度，即ES数据相对于b的偏移
func ParsePes(b []byte) (pes Pes, length int, err error) {
	if len(b) < 6 {
		return pes, 0, base.NewErrShortBuffer(6, len(b), "pes header")
	}
	if !HasPesStartCode(b) {
		return pes, 0, base.ErrPesHeader
	}
	br := nazabits.NewBitReader(b[3:])
	pes.Sid, _ = br.ReadBits8(8)
	pes.Length, _ = br.ReadBits16(16)
	length = 6
	if len(b) < PesFixedHeaderSize || b[6]&0xc0 != 0x80 {
		return pes, length, nil
	}

	pes.Optional = true
	pes.PtsDtsFlag = b[7] >> 6
	pes.CrcFlag = b[7]&0x02 != 0
	pes.HeaderLen = b[8]
	length = PesFixedHeaderSize + int(pes.HeaderLen)
	if len(b) < length {
		return pes, length, base.NewErrShortBuffer(length, len(b), "pes header data")
	}

	if pes.PtsDtsFlag&0x2 != 0 && pes.HeaderLen >= 5 {
		pes.Pts, _, pes.PtsErr = ReadTimestamp(b[9:])
		pes.HasPts = pes.PtsErr == nil
	}
	if pes.HasPts && pes.PtsDtsFlag == 0x3 && pes.HeaderLen >= 10 {
		if dts, _, derr := ReadTimestamp(b[14:]); derr == nil {
			pes.Dts = dts
			pes.HasDts = true
		}
	}
	return
}
