// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package tsprocessor

import (
	"math"
	"sync"

	"github.com/q191201771/lalts/pkg/avc"
	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/lalts/pkg/demux"
	"github.com/q191201771/lalts/pkg/m2v"
	"github.com/q191201771/lalts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/nazaatomic"
)

// Processor 处理一个track的TS segment
//
// 根据StreamOperation，segment被demux成ES，或者（快进快退时重打时间戳后）以TS形式交给sink。
// SendSegment由同一个协程串行调用，Abort、SetRate、SetBasePts等可以在其他协程调用
type Processor struct {
	uniqueKey      string
	config         Config
	sink           ISink
	track          base.MediaType
	streamOp       StreamOperation
	peer           IPeer
	auxPeer        IPeer
	auxiliaryAudio bool
	packetSize     int // 包含tts前缀

	mu             sync.Mutex
	cond           *sync.Cond
	enabled        nazaatomic.Bool
	processing     bool
	abortCh        chan struct{}
	aborted        bool
	rendezvous     *basePtsRendezvous
	throttle       *throttler
	throttleEnable bool
	applyOffset    bool
	logDump        base.LogDump

	playMode     PlayMode
	playModeNext PlayMode
	playRate     float64
	playRateNext float64
	absRate      float64

	demux            bool
	vidDemuxer       *demux.Demuxer
	audDemuxer       *demux.Demuxer
	dsmccDemuxer     *demux.Demuxer
	demuxInitialized bool
	audioIndex       int // 当前demux的音频在components.Audio中的下标
	audioGroupId     string

	startPosition            float64
	haveStartPosition        bool
	packetStartAfterFirstPts int

	queued         []byte
	queuedPosition float64
	queuedDuration float64

	psiState
	retimestampState

	scanner    PictureScanner
	h264       *avc.H264Scanner
	mpeg2      *m2v.Mpeg2Scanner
	scanCarry  []byte
	scanKeep   bool
	nullPFrame *m2v.NullPFrame
}

// NewProcessor
//
// @param track:   透传时输出的媒体类型
// @param peer:    同一节目另一个track的Processor，没有时传nil
// @param auxPeer: 辅助音频的Processor，没有时传nil
func NewProcessor(sink ISink, track base.MediaType, op StreamOperation, peer, auxPeer IPeer, modOptions ...ModOption) *Processor {
	config := DefaultConfig()
	for _, fn := range modOptions {
		fn(&config)
	}

	p := &Processor{
		uniqueKey:                base.GenUkTsProcessor(),
		config:                   config,
		sink:                     sink,
		track:                    track,
		streamOp:                 op,
		peer:                     peer,
		auxPeer:                  auxPeer,
		packetSize:               config.TtsSize + mpegts.PacketSize,
		abortCh:                  make(chan struct{}),
		rendezvous:               newBasePtsRendezvous(),
		throttle:                 newThrottler(&config),
		throttleEnable:           config.ThrottleEnable,
		applyOffset:              config.ApplyOffset,
		logDump:                  base.NewLogDump(Log, 4),
		playMode:                 PlayModeNormal,
		playModeNext:             PlayModeNormal,
		playRate:                 1,
		playRateNext:             1,
		absRate:                  1,
		packetStartAfterFirstPts: -1,
	}
	p.cond = sync.NewCond(&p.mu)
	p.enabled.Store(true)
	p.psiState.init()
	p.retimestampState.init()

	switch op {
	case StreamOpDemuxAux:
		p.auxiliaryAudio = true
		p.streamOp = StreamOpDemuxAudio
	case StreamOpDemuxVideoAndAux:
		p.auxiliaryAudio = true
		p.streamOp = StreamOpDemuxAll
	}
	switch p.streamOp {
	case StreamOpDemuxVideo, StreamOpDemuxAll:
		p.vidDemuxer = demux.NewDemuxer(base.MediaTypeVideo, sink)
		p.dsmccDemuxer = demux.NewDemuxer(base.MediaTypeDsmCc, sink)
		p.demux = true
	}
	switch p.streamOp {
	case StreamOpDemuxAudio, StreamOpDemuxAll:
		mt := base.MediaTypeAudio
		if p.auxiliaryAudio {
			mt = base.MediaTypeAuxAudio
		}
		p.audDemuxer = demux.NewDemuxer(mt, sink)
		p.demux = true
	}

	Log.Infof("[%s] lifecycle new tsprocessor. track=%s, op=%s, demux=%t, aux=%t",
		p.uniqueKey, track, op, p.demux, p.auxiliaryAudio)
	return p
}

func (p *Processor) UniqueKey() string {
	return p.uniqueKey
}

// SendSegment 处理一个TS segment
//
// segment会被原地修改（重打时间戳、PID过滤），调用返回后可以复用
//
// @param position: segment在节目中的位置，单位秒
// @param duration: segment时长，单位秒，小于0表示未知
//
// @return ptsError: demux时出现PTS错误，此时err为base.ErrPtsError
// @return err:      nil表示segment被正常处理
func (p *Processor) SendSegment(segment []byte, position, duration float64, discontinuous bool) (ptsError bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled.Load() {
		Log.Infof("[%s] not enabled, return.", p.uniqueKey)
		return false, base.ErrDisabled
	}
	p.processing = true
	defer p.endProcessing()

	if p.playModeNext != p.playMode || p.playRateNext != p.playRate {
		p.playMode = p.playModeNext
		p.playRate = p.playRateNext
		p.absRate = math.Abs(p.playRate)
		p.haveBaseTime = false
		p.needDiscontinuity = true
		if p.scanner != nil {
			p.scanner.SetIonly(p.playMode == PlayModeRetimestampIonly)
		}
		Log.Infof("[%s] playback changed. rate=%f, mode=%s", p.uniqueKey, p.playRate, p.playMode)
	}
	p.framesProcessedInSegment = 0
	p.haveLastPtsOfSegment = false

	if err = p.checkSegment(segment); err != nil {
		Log.Errorf("[%s] discard segment. err=%+v", p.uniqueKey, err)
		if len(segment) >= p.packetSize {
			p.logDump.DumpPacket(p.uniqueKey, "first packet of invalid segment", segment[:p.packetSize])
		}
		return false, err
	}

	insPatPmt := p.playRate != 1 || p.streamOp == StreamOpSendVideoAndQueuedAudio
	removePatPmt := insPatPmt || p.streamOp == StreamOpQueueAudio
	if !p.processBuffer(segment, removePatPmt) {
		Log.Infof("[%s] aborted while processing buffer.", p.uniqueKey)
		return false, base.ErrAborted
	}

	if !p.haveStartPosition {
		Log.Infof("[%s] reset start position to %f", p.uniqueKey, position)
		p.startPosition = position
		p.haveStartPosition = true
	}
	if p.playRate != 0 {
		position = p.startPosition + (position-p.startPosition)/p.playRate
	}

	if !p.demux {
		if insPatPmt {
			p.updatePatPmt()
		}
		if p.needDiscontinuity {
			p.sendDiscontinuity(position)
		}
		if insPatPmt {
			p.sendPatPmt(position)
		}
		if p.playRate != 1 {
			p.reTimestampSegment(segment)
		}
	}

	switch {
	case p.demux:
		ptsError = p.dispatchDemux(segment, position, duration, discontinuous)
		if !p.enabled.Load() {
			return false, base.ErrAborted
		}
		if ptsError {
			err = base.ErrPtsError
		}
	case p.streamOp == StreamOpSendVideoAndQueuedAudio:
		split := p.packetStartAfterFirstPts
		if split < 0 {
			Log.Errorf("[%s] no pts found in segment, send queued audio first.", p.uniqueKey)
			split = 0
		}
		if split > 0 {
			p.sink.SendStreamCopy(p.track, segment[:split], position, position, duration)
		}
		if p.peer != nil {
			p.peer.SendQueuedSegment()
		}
		p.sink.SendStreamCopy(p.track, segment[split:], position, position, duration)
		p.appendNullPFrame(position)
	case p.streamOp == StreamOpQueueAudio:
		if p.queued != nil {
			Log.Warnf("[%s] queued segment not sent, drop it. len=%d", p.uniqueKey, len(p.queued))
		}
		p.queued = append(make([]byte, 0, len(segment)), segment...)
		p.queuedPosition = position
		p.queuedDuration = duration
	default:
		p.sink.SendStreamCopy(p.track, segment, position, position, duration)
		p.appendNullPFrame(position)
	}

	if duration >= 0 {
		p.throttle.setup(int64(duration * 1000))
	}
	return
}

// SendQueuedSegment 发送缓存的segment，只对 StreamOpQueueAudio 有效
func (p *Processor) SendQueuedSegment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queued == nil {
		Log.Warnf("[%s] no pending segment.", p.uniqueKey)
		return
	}
	if p.streamOp == StreamOpQueueAudio {
		p.sink.SendStreamCopy(p.track, p.queued, p.queuedPosition, p.queuedPosition, p.queuedDuration)
	} else {
		Log.Errorf("[%s] send queued segment invoked in invalid stream operation. op=%s", p.uniqueKey, p.streamOp)
	}
	p.queued = nil
}

// SetBasePts 由视频Processor调用，音频demux以此为准
func (p *Processor) SetBasePts(position float64, basePts mpegts.Uint33) {
	p.mu.Lock()
	Log.Infof("[%s] set base pts. position=%f, base pts=%s", p.uniqueKey, position, basePts)
	p.startPosition = position
	p.haveStartPosition = true
	if p.audDemuxer != nil {
		p.audDemuxer.Flush()
		p.audDemuxer.Init(position, 0, false, true)
		p.audDemuxer.SetBasePts(basePts, true)
	}
	p.demuxInitialized = true
	p.mu.Unlock()

	p.rendezvous.Publish(position, basePts)
}

// AudioComponents 返回拷贝
func (p *Processor) AudioComponents() []mpegts.Component {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mpegts.Component(nil), p.components.Audio...)
}

// Abort 让阻塞中的SendSegment尽快返回，返回后Processor不再处理segment，直到调用SetRate
func (p *Processor) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abortLocked()
}

// SetRate 设置新的播放速度和模式，下一个segment生效
func (p *Processor) SetRate(rate float64, mode PlayMode) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.havePat = false
	p.havePmt = false
	p.abortLocked()
	p.playRateNext = rate
	p.playModeNext = mode
	p.haveStartPosition = false
	p.throttle.resetFramePacing()
	p.enableLocked()
	Log.Infof("[%s] set rate. rate=%f, mode=%s", p.uniqueKey, rate, mode)
}

// SetPlayMode 对demux无意义
func (p *Processor) SetPlayMode(mode PlayMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	Log.Infof("[%s] set play mode. mode=%s", p.uniqueKey, mode)
	p.playModeNext = mode
}

func (p *Processor) SetThrottleEnable(enable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.throttleEnable = enable
}

func (p *Processor) SetApplyOffsetFlag(enable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyOffset = enable
}

// Reset seek或者换台后调用，重新获取PAT/PMT以及base pts
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	Log.Infof("[%s] reset.", p.uniqueKey)
	for _, d := range p.demuxers() {
		d.Reset()
	}
	p.enableLocked()
	p.demuxInitialized = false
	p.rendezvous.Reset()
	p.havePat = false
	p.havePmt = false
	p.pmtCollector.Reset()
	p.audioIndex = 0
	p.throttle.invalidate()
}

// Flush 发送所有demuxer中缓存的ES
func (p *Processor) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.demuxers() {
		d.Flush()
	}
}

// ChangeMuxedAudioTrack 切换到components.Audio中的第index路音频
func (p *Processor) ChangeMuxedAudioTrack(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	Log.Infof("[%s] muxed audio track changed from %d to %d", p.uniqueKey, p.audioIndex, index)
	p.audioIndex = index
}

func (p *Processor) SetAudioGroupId(groupId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audioGroupId = groupId
}

func (p *Processor) checkSegment(segment []byte) error {
	if len(segment) < p.packetSize || len(segment)%p.packetSize != 0 {
		return base.NewErrSegmentNotAligned(len(segment), p.packetSize)
	}
	first := segment[p.config.TtsSize:]
	if first[0] != 0x47 || first[1]&0x80 != 0 || first[3]&0xc0 != 0 {
		return base.ErrSegmentSync
	}
	return nil
}

func (p *Processor) demuxers() []*demux.Demuxer {
	var ds []*demux.Demuxer
	for _, d := range []*demux.Demuxer{p.vidDemuxer, p.audDemuxer, p.dsmccDemuxer} {
		if d != nil {
			ds = append(ds, d)
		}
	}
	return ds
}

func (p *Processor) endProcessing() {
	p.processing = false
	p.cond.Broadcast()
}

func (p *Processor) abortLocked() {
	p.enabled.Store(false)
	if !p.aborted {
		p.aborted = true
		close(p.abortCh)
	}
	for p.processing {
		Log.Infof("[%s] waiting for processing to end.", p.uniqueKey)
		p.cond.Wait()
	}
}

func (p *Processor) enableLocked() {
	if p.aborted {
		p.aborted = false
		p.abortCh = make(chan struct{})
	}
	p.enabled.Store(true)
}

// sleepUnlocked 释放锁后sleep，返回时已重新加锁
//
// @return aborted
func (p *Processor) sleepUnlocked(ms int64) bool {
	abort := p.abortCh
	p.mu.Unlock()
	aborted := sleep(ms, abort)
	p.mu.Lock()
	return aborted || !p.enabled.Load()
}
