// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package tsprocessor

import (
	"github.com/q191201771/lalts/pkg/avc"
	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/lalts/pkg/demux"
	"github.com/q191201771/lalts/pkg/m2v"
	"github.com/q191201771/lalts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/mock"
	"github.com/q191201771/naza/pkg/nazalog"
)

var Log = nazalog.GetGlobalLogger()

// Clock 节流使用的时钟
var Clock = mock.NewStdClock()

// StreamOperation 一个Processor对segment做什么处理，创建时确定
type StreamOperation int

const (
	StreamOpNone                    StreamOperation = iota // 不demux，直接透传（可能重打时间戳）
	StreamOpDemuxAudio                                     // 只demux音频，base pts来自视频Processor
	StreamOpDemuxVideo                                     // 只demux视频和DSM-CC
	StreamOpDemuxAll                                       // demux视频、音频、DSM-CC
	StreamOpQueueAudio                                     // 缓存音频segment，等视频Processor通知后再发送
	StreamOpSendVideoAndQueuedAudio                        // 发送视频，并且在第一个PTS之后插入peer缓存的音频
	StreamOpDemuxAux                                       // 只demux辅助音频
	StreamOpDemuxVideoAndAux                               // demux视频和辅助音频
)

func (op StreamOperation) String() string {
	switch op {
	case StreamOpNone:
		return "none"
	case StreamOpDemuxAudio:
		return "demux-audio"
	case StreamOpDemuxVideo:
		return "demux-video"
	case StreamOpDemuxAll:
		return "demux-all"
	case StreamOpQueueAudio:
		return "queue-audio"
	case StreamOpSendVideoAndQueuedAudio:
		return "send-video-and-queued-audio"
	case StreamOpDemuxAux:
		return "demux-aux"
	case StreamOpDemuxVideoAndAux:
		return "demux-video-and-aux"
	}
	return "unknown"
}

// PlayMode 非1倍速时的重打时间戳方式，demux时无意义
type PlayMode int

const (
	PlayModeNormal PlayMode = iota
	PlayModeRetimestampIPB
	PlayModeRetimestampIandP
	PlayModeRetimestampIonly
	PlayModeReverseGop
)

func (m PlayMode) String() string {
	switch m {
	case PlayModeNormal:
		return "normal"
	case PlayModeRetimestampIPB:
		return "retimestamp-ipb"
	case PlayModeRetimestampIandP:
		return "retimestamp-iandp"
	case PlayModeRetimestampIonly:
		return "retimestamp-ionly"
	case PlayModeReverseGop:
		return "reverse-gop"
	}
	return "unknown"
}

type trackToDemux int

const (
	trackBoth trackToDemux = iota
	trackVideo
	trackAudio
)

// ISink 接收Processor的输出
//
// 所有回调中的buf只在回调期间有效
type ISink interface {
	demux.ISink

	// SetStreamFormat PMT解析完成后通知各个track的格式
	SetStreamFormat(video, audio, auxAudio base.StreamFormat)

	// SetAudioTrackInfoFromMuxedStream 开启 Config.PublishMuxedAudio 时通知复用在TS中的音频轨道
	SetAudioTrackInfoFromMuxedStream(tracks []base.AudioTrackInfo)
	SetCurrentAudioTrackIndex(index string)
}

// IPeer 处理同一节目另一个track的Processor
//
// 调用关系是单向的：视频Processor持有音频Processor的IPeer，反之不行
type IPeer interface {
	// SetBasePts 通知peer使用统一的base pts，只demux音频的peer会在收到之前阻塞
	SetBasePts(position float64, basePts mpegts.Uint33)

	// SendQueuedSegment 发送peer缓存的segment
	SendQueuedSegment()

	// AudioComponents 为peer生成PMT时读取音频信息
	AudioComponents() []mpegts.Component
}

// PictureScanner 视频ES中start code的处理策略，每次解析PMT时根据视频格式选择
type PictureScanner interface {
	// RemainderLimit 处理一个start code至少需要的字节数，跨segment的残留数据也按这个长度保存
	RemainderLimit() int

	OnPesStart()

	// ProcessStartCode store中pos处为 00 00 01
	//
	// @return keepScanning: false表示当前PES不需要继续扫描
	ProcessStartCode(store base.ByteStore, pos int) (keepScanning bool)

	// NeedInterlaceProbe 需要先判断是否隔行，才能确定I帧模式的帧间隔
	NeedInterlaceProbe() bool

	SetIonly(ionly bool)
}

const (
	DefaultThrottleMaxDelayMs              = 500
	DefaultThrottleMaxDiffSegmentsMs       = 400
	DefaultThrottleDelayIgnoredMs          = 200
	DefaultThrottleDelayForDiscontinuityMs = 2000

	// FixedFrameRate 快进快退时输出的帧率
	FixedFrameRate = 10
)

const (
	pidCount = int(mpegts.PidMax) + 1

	// PCR比PTS提前的量
	pcrPtsOffset = mpegts.Uint33(10000)

	// I帧模式下DTS比PTS提前的量
	ionlyDtsOffset = mpegts.Uint33(2 * 750)

	// 重复I帧时，同一个PTS下每多一个PCR额外增加的量
	pcrRepeatStep = 8

	// 相邻两个segment的首个PTS差值超过该值视为跳变
	ptsJumpThreshold = 10 * 90000
)

var (
	_ PictureScanner = (*avc.H264Scanner)(nil)
	_ PictureScanner = (*m2v.Mpeg2Scanner)(nil)
)
