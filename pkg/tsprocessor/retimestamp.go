// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package tsprocessor

import (
	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/lalts/pkg/m2v"
	"github.com/q191201771/lalts/pkg/mpegts"
)

// retimestampState 非1倍速透传时重打时间戳的状态
type retimestampState struct {
	haveBaseTime    bool
	baseTime        mpegts.Uint33
	segmentBaseTime mpegts.Uint33

	basePcr            mpegts.Uint33 // 当前帧的第一个PCR，倒放时用于保证同一帧内PCR递增
	haveBasePcr        bool
	prevRateAdjPcr     mpegts.Uint33
	havePrevRateAdjPcr bool
	currRateAdjPcr     mpegts.Uint33
	haveCurrRateAdjPcr bool
	currRateAdjPts     mpegts.Uint33
	haveCurrRateAdjPts bool

	haveUpdatedFirstPts bool
	pcrPerPtsCount      int

	throttlePts     mpegts.Uint33
	haveThrottlePts bool

	currentPts         mpegts.Uint33
	haveCurrentPts     bool
	actualStartPts     mpegts.Uint33
	haveActualStartPts bool

	framesProcessedInSegment int
	lastPtsOfSegment         mpegts.Uint33
	haveLastPtsOfSegment     bool

	needDiscontinuity bool

	cc [pidCount]uint8 // 输出的continuity_counter
}

func (s *retimestampState) init() {
	s.haveUpdatedFirstPts = true
	s.needDiscontinuity = true
}

// rateMultiplier 逐行H.264为1，隔行或MPEG-2为2（MPEG-2每个I帧后会插入一个空P帧）
func (p *Processor) rateMultiplier() float64 {
	if p.isH264 && !(p.h264 != nil && p.h264.Interlaced()) {
		return 1
	}
	return 2
}

func (p *Processor) apparentFrameRate() float64 {
	if p.config.ApparentFrameRate <= 0 {
		return FixedFrameRate
	}
	return float64(p.config.ApparentFrameRate)
}

func (p *Processor) interFrameDelay() mpegts.Uint33 {
	return mpegts.NewUint33(uint64(90000 / (p.apparentFrameRate() * p.rateMultiplier())))
}

func (p *Processor) absPlayRate() float64 {
	if p.absRate == 0 {
		return 1
	}
	return p.absRate
}

// rateAdjust 按播放速度把离base的距离缩放后加到segmentBaseTime上
func (p *Processor) rateAdjust(offset int64) mpegts.Uint33 {
	scaled := int64(float64(offset)/p.absPlayRate() + 0.5)
	return mpegts.NewUint33(uint64(scaled)).Add(p.segmentBaseTime)
}

func (p *Processor) ptsOffset(ts mpegts.Uint33) int64 {
	offset := ts.Delta(p.baseTime)
	if p.playRate < 0 {
		offset = -offset
	}
	return offset
}

// reTimestampSegment 对整个segment重写PTS/DTS/PCR以及CC
func (p *Processor) reTimestampSegment(segment []byte) {
	p.scanPictures(segment)

	if !p.haveBaseTime {
		p.haveBasePcr = false
	}
	tts := p.config.TtsSize
	for i := 0; i+p.packetSize <= len(segment); i += p.packetSize {
		p.reTimestampPacket(segment[i+tts : i+p.packetSize])
	}
}

func (p *Processor) reTimestampPacket(packet []byte) {
	pid := mpegts.Pid(packet)

	filter := &p.pidFilter
	if p.config.TrickExcludeAudio {
		filter = &p.pidFilterTrick
	}
	if !filter[pid] {
		mpegts.NullPacket(packet)
		return
	}

	if mpegts.HasPayload(packet) {
		mpegts.SetCc(packet, p.cc[pid])
		p.cc[pid] = (p.cc[pid] + 1) & 0x0f
	}

	updatePcr := false
	if p.havePcrPid && pid == p.pcrPid {
		if mpegts.IsPayloadUnitStart(packet) {
			p.haveBasePcr = false
		}
		if mpegts.HasPcr(packet) {
			p.onPcr(mpegts.ReadPcr(packet[6:]), pid)
			updatePcr = true
		}
	}

	if mpegts.IsPayloadUnitStart(packet) && (p.haveBaseTime || p.playMode == PlayModeRetimestampIonly) {
		p.reTimestampPes(packet, pid, updatePcr)
	}

	if updatePcr {
		// 重复I帧时PCR不能重复
		if p.havePrevRateAdjPcr && !p.currRateAdjPcr.After(p.prevRateAdjPcr) {
			step := 90000/(p.apparentFrameRate()*p.rateMultiplier()) + float64(p.pcrPerPtsCount*pcrRepeatStep)
			p.currRateAdjPcr = p.currRateAdjPcr.Add(mpegts.NewUint33(uint64(step)))
		}
		p.prevRateAdjPcr = p.currRateAdjPcr
		p.havePrevRateAdjPcr = true
		mpegts.WritePcr(packet[6:], p.currRateAdjPcr, p.absPlayRate() >= 4)
	}
}

func (p *Processor) onPcr(pcr mpegts.Uint33, pid uint16) {
	if !p.haveBaseTime {
		p.haveBaseTime = true
		p.baseTime = pcr
		p.segmentBaseTime = pcr
		Log.Infof("[%s] have base time %s from pid %d pcr.", p.uniqueKey, pcr, pid)
	}
	if !p.haveBasePcr {
		p.basePcr = pcr
		p.haveBasePcr = true
	}

	if p.playMode == PlayModeRetimestampIonly {
		p.currRateAdjPcr = p.currRateAdjPts.Sub(pcrPtsOffset)
	} else {
		offset := p.ptsOffset(pcr)
		if p.playRate < 0 && p.haveBasePcr {
			// 倒放时同一帧内的多个PCR也要保持递增
			if offsetBase := p.baseTime.Delta(p.basePcr); offset < offsetBase {
				offset = offsetBase + (offsetBase - offset)
			}
		}
		p.currRateAdjPcr = p.rateAdjust(offset)
	}
	p.haveCurrRateAdjPcr = true
	p.pcrPerPtsCount++
}

// reTimestampPes packet是PES的第一个packet
func (p *Processor) reTimestampPes(packet []byte, pid uint16, updatePcr bool) {
	offset := mpegts.PayloadOffset(packet)
	if offset+mpegts.PesFixedHeaderSize > mpegts.PacketSize {
		return
	}
	pes := packet[offset:]
	if !mpegts.HasPesStartCode(pes) {
		return
	}
	flags := pes[7]
	if flags&0x02 != 0 {
		Log.Warnf("[%s] pes packet has crc flag set. pid=%d", p.uniqueKey, pid)
	}
	if flags&0x80 == 0 {
		return
	}
	tsPos := mpegts.PesFixedHeaderSize
	if tsPos+5 > len(pes) {
		return
	}

	pts, prefix, err := mpegts.ReadTimestamp(pes[tsPos:])
	if err != nil {
		Log.Warnf("[%s] invalid pts. pid=%d, err=%+v", p.uniqueKey, pid, err)
		return
	}
	isPcrPid := p.havePcrPid && pid == p.pcrPid
	ionly := p.playMode == PlayModeRetimestampIonly
	if isPcrPid {
		p.pcrPerPtsCount = 0
	}
	if !p.haveBaseTime && ionly {
		p.haveBaseTime = true
		p.baseTime = pts.Sub(p.interFrameDelay())
		p.segmentBaseTime = p.baseTime
		Log.Debugf("[%s] have base time %s from pid %d pts.", p.uniqueKey, p.baseTime, pid)
	}

	var adjPts mpegts.Uint33
	if isPcrPid && ionly {
		switch {
		case !p.haveUpdatedFirstPts:
			if p.haveCurrRateAdjPcr && p.currRateAdjPcr != 0 {
				adjPts = p.currRateAdjPcr.Add(pcrPtsOffset)
			} else {
				adjPts = pts
			}
			p.haveUpdatedFirstPts = true
		case p.framesProcessedInSegment > 0 && p.haveLastPtsOfSegment:
			// 同一个segment中已经加过帧间隔了，按原始间隔缩放
			delta := pts.Delta(p.lastPtsOfSegment)
			if p.playRate != 0 {
				delta = int64(float64(delta) / p.playRate)
			}
			adjPts = p.currRateAdjPts.Add(mpegts.NewUint33(uint64(delta)))
		default:
			adjPts = p.currRateAdjPts.Add(p.interFrameDelay())
		}
		if updatePcr && p.haveUpdatedFirstPts {
			p.currRateAdjPcr = adjPts.Sub(pcrPtsOffset)
		}
		p.currRateAdjPts = adjPts
		p.haveCurrRateAdjPts = true
	} else {
		adjPts = p.rateAdjust(p.ptsOffset(pts))
	}
	if isPcrPid {
		p.throttlePts = adjPts
		p.haveThrottlePts = true
	}
	mpegts.WriteTimestamp(pes[tsPos:], prefix, adjPts)
	p.lastPtsOfSegment = pts
	p.haveLastPtsOfSegment = true
	p.framesProcessedInSegment++

	if flags&0x40 == 0 {
		return
	}
	tsPos += 5
	if tsPos+5 > len(pes) {
		return
	}
	if isPcrPid && ionly {
		mpegts.WriteTimestamp(pes[tsPos:], pes[tsPos]>>4, adjPts.Sub(ionlyDtsOffset))
		return
	}
	dts, dtsPrefix, err := mpegts.ReadTimestamp(pes[tsPos:])
	if err != nil {
		Log.Warnf("[%s] invalid dts. pid=%d, err=%+v", p.uniqueKey, pid, err)
		return
	}
	mpegts.WriteTimestamp(pes[tsPos:], dtsPrefix, p.rateAdjust(p.ptsOffset(dts)))
}

// scanPictures 扫描视频ES中的start code
//
// I帧模式下每个视频PES都要扫描（重写POC，获取MPEG-2帧大小），其他模式只在还不知道H.264是否隔行时扫描
func (p *Processor) scanPictures(segment []byte) {
	if p.scanner == nil || !p.haveVideoPid {
		return
	}
	ionly := p.playMode == PlayModeRetimestampIonly
	probe := p.scanner.NeedInterlaceProbe()
	if !ionly && !probe {
		p.scanCarry = nil
		return
	}

	view := mpegts.NewPayloadView(segment, p.config.TtsSize, p.videoPid, p.scanCarry)
	limit := p.scanner.RemainderLimit()
	end := view.Len() - limit
	starts := view.PesStarts()
	si := 0
	for j := 0; j < end; j++ {
		for si < len(starts) && starts[si] <= j {
			p.onScanPesStart(ionly)
			si++
		}
		if !p.scanKeep && !probe {
			continue
		}
		if base.HasStartCodeAt(view, j) {
			p.scanKeep = p.scanner.ProcessStartCode(view, j)
			if probe && !p.scanner.NeedInterlaceProbe() {
				probe = false
				Log.Infof("[%s] interlace known. interlaced=%t", p.uniqueKey, p.isH264 && p.h264.Interlaced())
			}
		}
	}
	// 落在尾部的PES在下一个segment中继续扫描
	for ; si < len(starts); si++ {
		p.onScanPesStart(ionly)
	}
	p.scanCarry = view.Tail(limit)
}

func (p *Processor) onScanPesStart(ionly bool) {
	if ionly {
		p.scanner.OnPesStart()
		p.scanKeep = true
	}
}

// appendNullPFrame I帧模式的MPEG-2视频在每个segment后追加一个空P帧
func (p *Processor) appendNullPFrame(position float64) {
	if p.playMode != PlayModeRetimestampIonly || p.isH264 || p.mpeg2 == nil || !p.haveVideoPid {
		return
	}
	if !p.haveCurrRateAdjPts || p.framesProcessedInSegment == 0 {
		return
	}
	width, height := p.mpeg2.FrameSize()
	if width < 0 || height < 0 {
		return
	}
	if p.nullPFrame == nil || p.nullPFrame.Width != width || p.nullPFrame.Height != height || p.nullPFrame.Pid != p.videoPid {
		f, err := m2v.NewNullPFrame(width, height, p.videoPid, p.config.TtsSize)
		if err != nil {
			Log.Warnf("[%s] create null p frame failed. err=%+v", p.uniqueKey, err)
			return
		}
		Log.Infof("[%s] null p frame created. size=%dx%d, len=%d", p.uniqueKey, width, height, f.Len())
		p.nullPFrame = f
	}

	pts := p.currRateAdjPts.Add(p.interFrameDelay())
	out, nextCc := p.nullPFrame.Pack(pts, p.cc[p.videoPid])
	p.cc[p.videoPid] = nextCc
	p.currRateAdjPts = pts
	p.sink.SendStreamCopy(p.track, out, position, position, 0)
}
