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
	"github.com/q191201771/naza/pkg/nazalog"
)

// MPEG-2 Video (ISO/IEC 13818-2)

var Log = nazalog.GetGlobalLogger()

const (
	StartCodePicture        uint8 = 0x00
	StartCodeSliceMin       uint8 = 0x01
	StartCodeSliceMax       uint8 = 0xaf
	StartCodeSequenceHeader uint8 = 0xb3
	StartCodeExtension      uint8 = 0xb5
	StartCodeGop            uint8 = 0xb8
)

// ScanRemainderSize 跨segment扫描时需要保留的最少字节数
const ScanRemainderSize = 7

// MacroblockSize 宏块的宽高
const MacroblockSize = 16

type SequenceHeader struct {
	Width  int
	Height int
}

// ParseSequenceHeader store中pos处为 00 00 01 b3
func ParseSequenceHeader(store base.ByteStore, pos int) (sh SequenceHeader, err error) {
	if pos+7 > store.Len() {
		return sh, base.NewErrShortBuffer(pos+7, store.Len(), "mpeg2 sequence header")
	}
	if !base.HasStartCodeAt(store, pos) || store.ByteAt(pos+3) != StartCodeSequenceHeader {
		return sh, fmt.Errorf("%w. not a sequence header", base.ErrM2v)
	}
	b4 := int(store.ByteAt(pos + 4))
	b5 := int(store.ByteAt(pos + 5))
	b6 := int(store.ByteAt(pos + 6))
	sh.Width = b4<<4 | b5>>4
	sh.Height = (b5&0x0f)<<8 | b6
	return sh, nil
}

func IsSliceStartCode(code uint8) bool {
	return code >= StartCodeSliceMin && code <= StartCodeSliceMax
}
