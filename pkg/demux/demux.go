// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package demux

import (
	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/lalts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/nazalog"
)

var Log = nazalog.GetGlobalLogger()

// MaxFirstPtsOffset 首个PTS与base pts之间允许的最大间隔，500毫秒
const MaxFirstPtsOffset = mpegts.Uint33(45000)

type ISink interface {
	// SendStreamCopy
	//
	// @param es: 回调返回后内存会被复用，需要的话业务方自行拷贝
	// @param pts, dts, duration: 单位秒
	SendStreamCopy(mediaType base.MediaType, es []byte, pts, dts, duration float64)

	NotifyFirstVideoPts(pts uint64)
	NotifyVideoBasePts(basePts uint64)
}

type pesState int

const (
	pesStateWaitingForHeader pesState = iota
	pesStateGettingHeader
	pesStateGettingHeaderExtension
	pesStateGettingEs
)

func (s pesState) String() string {
	switch s {
	case pesStateWaitingForHeader:
		return "WaitingForHeader"
	case pesStateGettingHeader:
		return "GettingHeader"
	case pesStateGettingHeaderExtension:
		return "GettingHeaderExtension"
	case pesStateGettingEs:
		return "GettingEs"
	}
	return "unknown"
}

type ProcessResult struct {
	BasePtsUpdated bool

	// PtsError 稳定状态下出现了明显早于base pts的PTS，调用方应丢弃当前segment
	PtsError bool

	// PacketIgnored PES起始码校验失败，并且这个demuxer还从来没有收到过PTS
	PacketIgnored bool
}
