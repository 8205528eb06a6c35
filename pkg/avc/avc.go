// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

var NaluUintTypeMapping = map[uint8]string{
	1:  "SLICE",
	2:  "DPA",
	3:  "DPB",
	4:  "DPC",
	5:  "IDR",
	6:  "SEI",
	7:  "SPS",
	8:  "PPS",
	9:  "AUD",
	10: "EOSEQ",
	11: "EOSTREAM",
	12: "FILLER",
	13: "SPSEXT",
	14: "PREFIX",
	15: "SUBSETSPS",
}

var SliceTypeMapping = map[uint32]string{
	0: "P",
	1: "B",
	2: "I",
	3: "SP",
	4: "SI",
	5: "P",
	6: "B",
	7: "I",
	8: "SP",
	9: "SI",
}

const (
	NaluUnitTypeSlice    uint8 = 1
	NaluUnitTypeIDRSlice uint8 = 5
	NaluUnitTypeSEI      uint8 = 6
	NaluUintTypeSPS      uint8 = 7
	NaluUintTypePPS      uint8 = 8
	NaluUintTypeAUD      uint8 = 9
)

const (
	MaxSpsCount = 32
	MaxPpsCount = 256
)

// ScanRemainderSize 跨packet查找start code时需要保留的字节数
//
// slice头部需要读到pic_order_cnt_lsb，SPS/PPS同理
const ScanRemainderSize = 29

// CalcNaluType b指向NAL头部
func CalcNaluType(b byte) uint8 {
	return b & 0x1f
}

func CalcNaluTypeReadable(b byte) string {
	ret, ok := NaluUintTypeMapping[CalcNaluType(b)]
	if !ok {
		return "unknown"
	}
	return ret
}

func CalcSliceTypeReadable(sliceType uint32) string {
	ret, ok := SliceTypeMapping[sliceType]
	if !ok {
		return "unknown"
	}
	return ret
}
