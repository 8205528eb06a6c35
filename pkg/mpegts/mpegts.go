// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

const (
	PacketSize       = 188
	PacketHeaderSize = 4

	syncByte uint8 = 0x47
)

// PID
const (
	PidPat  uint16 = 0x0000
	PidNull uint16 = 0x1fff
	PidMax  uint16 = 0x1fff

	// PidFirstPmtCandidate 生成PMT且输入流中没有PMT PID时，从该值开始挑选一个未被占用的PID
	PidFirstPmtCandidate uint16 = 0x0010
)

// stream_type，<iso13818-1.pdf> <Table 2-29>，以及ATSC/HDMV的私有扩展
const (
	StreamTypeMpeg2Video  uint8 = 0x02
	StreamTypeMpeg1Audio  uint8 = 0x03
	StreamTypeMpeg2Audio  uint8 = 0x04
	StreamTypePesPrivate  uint8 = 0x06
	StreamTypeAacAdts     uint8 = 0x0F
	StreamTypeAacLatm     uint8 = 0x11
	StreamTypeDsmCc       uint8 = 0x15 // deferred association tag, 承载ID3
	StreamTypeAvc         uint8 = 0x1B
	StreamTypeHevc        uint8 = 0x24
	StreamTypeAtscVideo   uint8 = 0x80
	StreamTypeAtscAc3     uint8 = 0x81
	StreamTypeHdmvDts     uint8 = 0x82
	StreamTypeLpcmAudio   uint8 = 0x83
	StreamTypeAtscAc3Plus uint8 = 0x84
	StreamTypeDtsHdAudio  uint8 = 0x86
	StreamTypeAtscEac3    uint8 = 0x87
	StreamTypeDtsAudio    uint8 = 0x8A
	StreamTypeAc3Audio    uint8 = 0x91
	StreamTypeSddsAudio   uint8 = 0x94
)

// stream_id of PES Header
const (
	StreamIdAudio    uint8 = 0xc0
	StreamIdVideo    uint8 = 0xe0
	StreamIdVideoEnd uint8 = 0xef
	StreamIdPrivate1 uint8 = 0xbd
)

const (
	// MaxPmtSectionSize 大于该值的PMT section直接忽略
	MaxPmtSectionSize = 1021

	// PatSptsSectionSize 只包含一个program的PAT的最小section_length
	PatSptsSectionSize = 13
)

func IsVideoStreamId(sid uint8) bool {
	return sid >= StreamIdVideo && sid <= StreamIdVideoEnd
}
