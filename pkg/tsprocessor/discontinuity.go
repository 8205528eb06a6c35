// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package tsprocessor

import (
	"github.com/q191201771/lalts/pkg/mpegts"
)

const (
	afFlagDiscontinuity = 0x80
	afFlagPcr           = 0x10
)

// packAdaptationOnly 只有adaptation field的packet，长度183，剩余部分填0xff
//
// @param pcr: 不为nil时携带PCR
func packAdaptationOnly(pid uint16, cc uint8, flags uint8, pcr *mpegts.Uint33, ttsSize int) []byte {
	out := make([]byte, ttsSize+mpegts.PacketSize)
	packet := out[ttsSize:]
	packet[0] = 0x47
	packet[1] = uint8(pid>>8) & 0x1f
	packet[2] = uint8(pid)
	packet[3] = 0x20 | (cc & 0x0f)
	packet[4] = mpegts.PacketSize - 5
	packet[5] = flags
	i := 6
	if pcr != nil {
		packet[5] |= afFlagPcr
		mpegts.WritePcr(packet[6:], *pcr, true)
		i += 6
	}
	for ; i < mpegts.PacketSize; i++ {
		packet[i] = 0xff
	}
	return out
}

// sendDiscontinuity 播放速度或模式变化后，在PCR PID（以及不同的视频PID）上通知下游时间戳不连续
//
// I帧模式下额外发送一个携带PCR的packet，PCR基于当前segment的第一个PTS
func (p *Processor) sendDiscontinuity(position float64) {
	if !p.havePcrPid || p.pcrPid >= mpegts.PidNull {
		Log.Warnf("[%s] no pcr pid, delay discontinuity.", p.uniqueKey)
		return
	}

	var insertPcr *mpegts.Uint33
	if !p.haveBaseTime && p.playMode == PlayModeRetimestampIonly && p.haveCurrentPts {
		pcr := p.currentPts.Sub(pcrPtsOffset)
		insertPcr = &pcr

		p.haveUpdatedFirstPts = false
		p.pcrPerPtsCount = 0
		p.havePrevRateAdjPcr = false
		p.currRateAdjPcr = pcr
		p.haveCurrRateAdjPcr = true
		p.currRateAdjPts = p.currentPts
		p.haveCurrRateAdjPts = true
	}

	pids := []uint16{p.pcrPid}
	if p.haveVideoPid && p.videoPid != p.pcrPid {
		pids = append(pids, p.videoPid)
	}
	var out []byte
	for _, pid := range pids {
		// adaptation-only的packet不递增CC，下一个带payload的packet从1开始
		out = append(out, packAdaptationOnly(pid, 0, afFlagDiscontinuity, nil, p.config.TtsSize)...)
		if insertPcr != nil {
			out = append(out, packAdaptationOnly(pid, 0, 0, insertPcr, p.config.TtsSize)...)
		}
		p.cc[pid] = 1
	}
	Log.Debugf("[%s] emit discontinuity. pids=%v, insert pcr=%t", p.uniqueKey, pids, insertPcr != nil)
	p.sink.SendStreamCopy(p.track, out, position, position, 0)
	p.needDiscontinuity = false
}
