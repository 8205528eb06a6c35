// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package tsprocessor

import (
	"github.com/q191201771/lalts/pkg/demux"
	"github.com/q191201771/lalts/pkg/mpegts"
)

// dispatchDemux
//
// @return ptsError
func (p *Processor) dispatchDemux(segment []byte, position, duration float64, discontinuous bool) bool {
	if p.streamOp == StreamOpDemuxAudio {
		if !p.config.AudioOnlyPlayback {
			if _, _, ok := p.rendezvous.Get(); !ok {
				Log.Warnf("[%s] wait for base pts.", p.uniqueKey)
				abort := p.abortCh
				p.mu.Unlock()
				_, _, ok = p.rendezvous.Wait(abort)
				p.mu.Lock()
				if !ok || !p.enabled.Load() {
					Log.Infof("[%s] not enabled while waiting for base pts.", p.uniqueKey)
					return false
				}
				Log.Warnf("[%s] got base pts.", p.uniqueKey)
			}
			// 视频Processor通知的起始位置
			position = p.startPosition
		}
		return !p.demuxAndSend(segment, position, duration, discontinuous, trackBoth)
	}

	if !p.config.DemuxAudioBeforeVideo {
		return !p.demuxAndSend(segment, position, duration, discontinuous, trackBoth)
	}
	Log.Debugf("[%s] sending audio first.", p.uniqueKey)
	audioOk := p.demuxAndSend(segment, position, duration, discontinuous, trackAudio)
	videoOk := p.demuxAndSend(segment, position, duration, discontinuous, trackVideo)
	return !audioOk && !videoOk
}

// demuxAndSend 把segment中的packet分发给对应的demuxer
//
// 在没有初始化或者不连续时，用第一个PCR作为所有demuxer的临时base pts，之后第一个确定下来的base pts会同步给其他demuxer以及peer
//
// @return false表示出现PTS错误，segment剩余部分被丢弃
func (p *Processor) demuxAndSend(segment []byte, position, duration float64, discontinuous bool, track trackToDemux) bool {
	trick := p.playRate != 1
	videoPid, audioPid, dsmccPid := -1, -1, -1
	firstPcrFound := false
	notifyPeer := false
	basePtsUpdatedFromCurrentSegment := false
	reinit := discontinuous || !p.demuxInitialized

	if p.vidDemuxer != nil && (track == trackBoth || track == trackVideo) {
		if len(p.components.Video) > 0 {
			videoPid = int(p.components.Video[0].Pid)
		}
		if p.components.HaveDsmCc {
			dsmccPid = int(p.components.DsmCc.Pid)
		}
		if reinit {
			if discontinuous && !trick {
				Log.Infof("[%s] discontinuous buffer, flushing video demux.", p.uniqueKey)
			}
			p.vidDemuxer.Flush()
			p.vidDemuxer.Init(position, duration, trick, true)
			p.dsmccDemuxer.Flush()
			p.dsmccDemuxer.Init(position, duration, trick, true)
		}
	}
	if p.audDemuxer != nil && (track == trackBoth || track == trackAudio) {
		if n := len(p.components.Audio); n > 0 {
			if p.audioIndex < 0 || p.audioIndex >= n {
				p.audioIndex = 0
			}
			audioPid = int(p.components.Audio[p.audioIndex].Pid)
		}
		if reinit {
			if discontinuous {
				Log.Infof("[%s] discontinuous buffer, flushing audio demux.", p.uniqueKey)
			}
			p.audDemuxer.Flush()
			p.audDemuxer.Init(position, duration, trick, p.streamOp != StreamOpDemuxAudio)
		}
	}

	// 只demux音频时，base pts在这之前已经由视频Processor设置
	if p.streamOp == StreamOpDemuxAudio {
		p.demuxInitialized = true
	}
	Log.Debugf("[%s] demux and send. len=%d, video pid=%d, audio pid=%d, pcr pid=%d, initialized=%t",
		p.uniqueKey, len(segment), videoPid, audioPid, p.pcrPid, p.demuxInitialized)

	tts := p.config.TtsSize
	for i := 0; i+p.packetSize <= len(segment); i += p.packetSize {
		packet := segment[i+tts : i+p.packetSize]
		pid := int(mpegts.Pid(packet))

		var d *demux.Demuxer
		isDsmcc := false
		switch {
		case p.vidDemuxer != nil && pid == videoPid:
			d = p.vidDemuxer
		case p.audDemuxer != nil && pid == audioPid:
			d = p.audDemuxer
		case p.dsmccDemuxer != nil && pid == dsmccPid:
			d = p.dsmccDemuxer
			isDsmcc = true
		}

		if (discontinuous || !p.demuxInitialized) && !firstPcrFound && p.streamOp != StreamOpDemuxAudio &&
			p.havePcrPid && pid == int(p.pcrPid) && mpegts.HasPcr(packet) {
			firstPcr := mpegts.ReadPcr(packet[6:])
			if !trick {
				Log.Infof("[%s] first pcr %s", p.uniqueKey, firstPcr)
			}
			for _, dd := range p.demuxers() {
				dd.SetBasePts(firstPcr, false)
			}
			firstPcrFound = true
			notifyPeer = true
			p.demuxInitialized = true
		}

		if d == nil {
			continue
		}
		r := d.ProcessPacket(packet, p.applyOffset)

		// 当前音频PID上没有PES数据时，换下一路音频
		if d == p.audDemuxer && r.PacketIgnored && p.audioIndex < len(p.components.Audio)-1 {
			p.audioIndex++
			Log.Warnf("[%s] switched to next audio pid since no pes data in current pid. index=%d", p.uniqueKey, p.audioIndex)
		}

		if !p.demuxInitialized && !isDsmcc {
			Log.Warnf("[%s] pcr not available before es packet.", p.uniqueKey)
			p.demuxInitialized = true
			notifyPeer = true
		}

		if r.BasePtsUpdated && notifyPeer && !isDsmcc {
			p.propagateBasePts(d, position)
			notifyPeer = false
		}
		if r.PtsError && !isDsmcc && !basePtsUpdatedFromCurrentSegment {
			Log.Warnf("[%s] pts error, discarding segment.", p.uniqueKey)
			return false
		}
		if r.BasePtsUpdated {
			basePtsUpdatedFromCurrentSegment = true
		}
	}
	return true
}

// propagateBasePts 以src确定的base pts为准，同步给本Processor的其他demuxer以及peer
func (p *Processor) propagateBasePts(src *demux.Demuxer, position float64) {
	basePts, ok := src.BasePts()
	if !ok {
		return
	}
	if p.audDemuxer != nil && p.audDemuxer != src && p.streamOp != StreamOpDemuxAudio {
		Log.Infof("[%s] using first video pts as base pts.", p.uniqueKey)
		p.audDemuxer.SetBasePts(basePts, true)
	} else if p.vidDemuxer != nil && p.vidDemuxer != src && p.streamOp != StreamOpDemuxVideo {
		Log.Warnf("[%s] using first audio pts as base pts.", p.uniqueKey)
		p.vidDemuxer.SetBasePts(basePts, true)
	}
	if p.dsmccDemuxer != nil {
		p.dsmccDemuxer.SetBasePts(basePts, true)
	}
	if p.peer != nil {
		p.peer.SetBasePts(position, basePts)
	}
	if p.auxPeer != nil {
		p.auxPeer.SetBasePts(position, basePts)
	}
}
