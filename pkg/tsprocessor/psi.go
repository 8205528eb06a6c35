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
	"github.com/q191201771/lalts/pkg/m2v"
	"github.com/q191201771/lalts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/bele"
)

type psiState struct {
	havePat    bool
	versionPat uint8
	program    uint16
	pmtPid     uint16
	havePmtPid bool

	havePmt      bool
	versionPmt   uint8
	pmtCollector *mpegts.SectionCollector
	components   mpegts.ProgramComponents

	videoPid     uint16
	haveVideoPid bool
	pcrPid       uint16
	havePcrPid   bool
	isH264       bool
	isMcChannel  bool // PCR在音频上

	// 重新生成的PAT+PMT，分别用于正常播放、快进快退（不含音频）、PCR在音频上的快进快退
	patPmt            []byte
	patPmtPcrPid      uint16
	patPmtTrick       []byte
	patPmtTrickPcrPid uint16
	patPmtMc          []byte
	patPmtMcPcrPid    uint16
	patCc             uint8
	pmtCc             uint8

	pidFilter      [pidCount]bool
	pidFilterTrick [pidCount]bool

	inputCc     [pidCount]uint8
	haveInputCc [pidCount]bool
}

func (s *psiState) init() {
	s.pmtCollector = mpegts.NewSectionCollector(mpegts.MaxPmtSectionSize)
}

// processBuffer 第一遍遍历segment：跟踪PAT/PMT，记录首个PTS，节流，以及快进快退时的PID过滤
//
// @return false表示节流时被abort
func (p *Processor) processBuffer(segment []byte, removePatPmt bool) bool {
	p.packetStartAfterFirstPts = -1
	p.haveActualStartPts = false
	seenVideo := false

	tts := p.config.TtsSize
	for i := 0; i+p.packetSize <= len(segment); i += p.packetSize {
		packet := segment[i+tts : i+p.packetSize]
		if packet[0] != 0x47 {
			Log.Warnf("[%s] sync byte lost. offset=%d, byte=0x%x", p.uniqueKey, i, packet[0])
			continue
		}
		pid := mpegts.Pid(packet)
		if p.config.CheckContinuity {
			p.checkContinuity(packet, pid, i)
		}

		switch {
		case pid == mpegts.PidPat:
			p.handlePat(packet)
			if removePatPmt {
				mpegts.NullPacket(packet)
			}
		case p.havePmtPid && pid == p.pmtPid:
			p.handlePmt(packet)
			if removePatPmt {
				mpegts.NullPacket(packet)
			}
		case (p.haveVideoPid && pid == p.videoPid) || (p.havePcrPid && pid == p.pcrPid):
			seenVideo = true
			if !p.haveActualStartPts && mpegts.IsPayloadUnitStart(packet) {
				if packet[3]&0xc0 != 0 {
					Log.Warnf("[%s] transport scrambling control bits are non-zero, data may still be scrambled. pid=%d", p.uniqueKey, pid)
				}
				if pts, ok := readPesPts(packet); ok {
					p.onSegmentPts(pts)
					p.packetStartAfterFirstPts = i + p.packetSize
				}
			}
		default:
			// 快进快退只保留视频
			if p.playRate != 1 && !p.demux {
				mpegts.NullPacket(packet)
			}
		}
	}

	if seenVideo && p.throttleEnable {
		if p.doThrottle() {
			Log.Infof("[%s] throttle aborted.", p.uniqueKey)
			return false
		}
	}
	return true
}

func (p *Processor) checkContinuity(packet []byte, pid uint16, offset int) {
	if pid == mpegts.PidNull || !mpegts.HasPayload(packet) {
		return
	}
	cc := packet[3] & 0x0f
	if p.haveInputCc[pid] {
		if expected := (p.inputCc[pid] + 1) & 0x0f; cc != expected {
			Log.Warnf("[%s] input discontinuity on pid %d. cc=%d, expected=%d, offset=%d", p.uniqueKey, pid, cc, expected, offset)
		}
	}
	p.inputCc[pid] = cc
	p.haveInputCc[pid] = true
}

// onSegmentPts 记录segment中视频或PCR PID上的首个PTS
func (p *Processor) onSegmentPts(pts mpegts.Uint33) {
	if p.haveCurrentPts {
		if d := pts.Delta(p.currentPts); d > ptsJumpThreshold || d < -ptsJumpThreshold {
			Log.Infof("[%s] pts discontinuity. %s -> %s", p.uniqueKey, p.currentPts, pts)
		}
	}
	p.currentPts = pts
	p.haveCurrentPts = true
	p.actualStartPts = pts
	p.haveActualStartPts = true
}

func (p *Processor) handlePat(packet []byte) {
	if !mpegts.IsPayloadUnitStart(packet) {
		return
	}
	section, ok := sectionOfPusiPacket(packet)
	if !ok || len(section) < 8 || section[0] != mpegts.TsPsiIdPas {
		return
	}
	version := (section[5] >> 1) & 0x1f
	current := section[5]&0x01 != 0
	if p.havePat && !(current && version != p.versionPat) {
		return
	}

	pat, err := mpegts.ParsePat(section)
	if err != nil {
		Log.Warnf("[%s] parse pat failed. err=%+v", p.uniqueKey, err)
		p.logDump.DumpPacket(p.uniqueKey, "invalid pat", packet)
		return
	}
	if int(pat.Sl) < mpegts.PatSptsSectionSize {
		Log.Warnf("[%s] pat too short. section_length=%d", p.uniqueKey, pat.Sl)
		return
	}
	ppe, ok := pat.FirstProgram()
	if !ok || ppe.PmPid == 0 {
		Log.Warnf("[%s] ignore pat with suspect program. programs=%+v", p.uniqueKey, pat.ProgramElements)
		p.logDump.DumpPacket(p.uniqueKey, "suspect pat", packet)
		return
	}
	if int(pat.Sl) > mpegts.PatSptsSectionSize {
		Log.Warnf("[%s] pat is mpts, using program %d.", p.uniqueKey, ppe.Pn)
	}

	p.havePat = true
	p.versionPat = version
	p.program = ppe.Pn
	p.pmtPid = ppe.PmPid
	p.havePmtPid = true
	if p.havePmt {
		Log.Infof("[%s] pmt change detected in pat.", p.uniqueKey)
		p.havePmt = false
	}
	Log.Debugf("[%s] acquired pat. version=%d, program=%d, pmt pid=%d", p.uniqueKey, version, p.program, p.pmtPid)
}

func (p *Processor) handlePmt(packet []byte) {
	offset := mpegts.PayloadOffset(packet)
	if offset >= mpegts.PacketSize {
		return
	}
	cc := packet[3] & 0x0f

	var section []byte
	var err error
	if mpegts.IsPayloadUnitStart(packet) {
		data, ok := sectionOfPusiPacket(packet)
		if !ok || len(data) < 6 || data[0] != mpegts.TsPsiIdPms {
			return
		}
		if p.havePat && bele.BeUint16(data[3:]) != p.program {
			Log.Warnf("[%s] pmt program mismatch. expected=%d, actual=%d", p.uniqueKey, p.program, bele.BeUint16(data[3:]))
			return
		}
		version := (data[5] >> 1) & 0x1f
		current := data[5]&0x01 != 0
		if p.havePmt {
			if !current || version == p.versionPmt {
				return
			}
			Log.Infof("[%s] pmt version changed. %d -> %d", p.uniqueKey, p.versionPmt, version)
			p.havePmt = false
		}
		section, err = p.pmtCollector.Start(data, cc)
	} else {
		if !p.pmtCollector.Active() {
			return
		}
		section, err = p.pmtCollector.Continue(packet[offset:], cc)
	}
	if err != nil {
		Log.Warnf("[%s] collect pmt failed. err=%+v", p.uniqueKey, err)
		return
	}
	if section == nil {
		return
	}

	pmt, err := mpegts.ParsePmt(section)
	if err != nil {
		Log.Warnf("[%s] parse pmt failed. err=%+v", p.uniqueKey, err)
		p.logDump.DumpPacket(p.uniqueKey, "invalid pmt", packet)
		return
	}
	p.onPmt(mpegts.ClassifyPmt(&pmt))
}

func (p *Processor) onPmt(pc mpegts.ProgramComponents) {
	Log.Infof("[%s] acquired pmt. version=%d, program=%d, pcr pid=%d, video=%d, audio=%d, dsmcc=%t",
		p.uniqueKey, pc.Version, pc.ProgramNumber, pc.PcrPid, len(pc.Video), len(pc.Audio), pc.HaveDsmCc)

	p.components = pc
	p.pcrPid = pc.PcrPid
	p.havePcrPid = true
	p.isMcChannel = false
	if len(pc.Video) > 0 {
		p.videoPid = pc.Video[0].Pid
		p.haveVideoPid = true
		p.selectScanner(pc.Video[0])
	} else {
		p.haveVideoPid = false
		p.scanner = nil
		p.isH264 = false
	}

	if len(pc.Audio) > 0 {
		if p.config.PublishMuxedAudio {
			p.sink.SetAudioTrackInfoFromMuxedStream(BuildAudioTrackInfos(pc.Audio, p.audioGroupId, &p.config))
		}
		if p.audDemuxer != nil {
			if idx := SelectAudioIndex(pc.Audio, &p.config); idx >= 0 {
				Log.Infof("[%s] selected best audio track %d.", p.uniqueKey, idx)
				p.audioIndex = idx
				p.sink.SetCurrentAudioTrackIndex(muxedAudioIndex(idx))
			}
		}
	}
	if p.audioIndex >= len(pc.Audio) {
		p.audioIndex = 0
	}

	videoFormat := base.StreamFormatInvalid
	if len(pc.Video) > 0 {
		videoFormat = pc.Video[0].Format
	}
	audioFormat := base.StreamFormatInvalid
	if len(pc.Audio) > 0 {
		audioFormat = pc.Audio[p.audioIndex].Format
	}
	if p.auxiliaryAudio {
		p.sink.SetStreamFormat(videoFormat, base.StreamFormatInvalid, audioFormat)
	} else {
		p.sink.SetStreamFormat(videoFormat, audioFormat, base.StreamFormatInvalid)
	}

	if pc.HaveDsmCc {
		Log.Infof("[%s] found dsmcc pid in program. program=%d, pcr pid=%d, dsmcc pid=%d", p.uniqueKey, pc.ProgramNumber, pc.PcrPid, pc.DsmCc.Pid)
	}
	if pc.IndexAudio {
		Log.Infof("[%s] indexing audio.", p.uniqueKey)
	}

	p.versionPmt = pc.Version
	p.havePmt = true
}

func (p *Processor) selectScanner(video mpegts.Component) {
	p.isH264 = false
	switch video.StreamType {
	case mpegts.StreamTypeAvc:
		if p.h264 == nil {
			p.h264 = avc.NewH264Scanner(p.config.ApparentFrameRate)
		}
		p.scanner = p.h264
		p.isH264 = true
	case mpegts.StreamTypeMpeg2Video:
		if p.mpeg2 == nil {
			p.mpeg2 = m2v.NewMpeg2Scanner()
		}
		p.scanner = p.mpeg2
	default:
		p.scanner = nil
	}
	if p.scanner != nil {
		p.scanner.SetIonly(p.playMode == PlayModeRetimestampIonly)
	}
	p.scanCarry = nil
}

// updatePatPmt 重新生成三种PAT+PMT，PCR PID切换为当前要插入的那一种
func (p *Processor) updatePatPmt() {
	if !p.havePmt {
		return
	}
	p.patPmt, p.patPmtPcrPid = p.generatePatPmt(false, false)
	p.patPmtTrick, p.patPmtTrickPcrPid = p.generatePatPmt(true, false)
	p.patPmtMc, p.patPmtMcPcrPid = p.generatePatPmt(false, true)

	if buf, pcrPid := p.selectPatPmt(); buf != nil {
		p.pcrPid = pcrPid
		p.havePcrPid = true
	}
}

func (p *Processor) selectPatPmt() ([]byte, uint16) {
	trick := p.playMode != PlayModeNormal
	switch {
	case trick && p.config.TrickExcludeAudio:
		return p.patPmtTrick, p.patPmtTrickPcrPid
	case trick && p.isMcChannel:
		return p.patPmtMc, p.patPmtMcPcrPid
	}
	return p.patPmt, p.patPmtPcrPid
}

// generatePatPmt
//
// @param trick:   快进快退，PMT中不包含音频
// @param mcTrick: PCR在音频上的节目在快进快退时改用视频PID作为PCR PID，并且增加PMT版本号
//
// @return buf为nil表示信息不足
func (p *Processor) generatePatPmt(trick, mcTrick bool) (buf []byte, pcrPid uint16) {
	video := p.components.Video
	audio := p.components.Audio
	if p.streamOp == StreamOpSendVideoAndQueuedAudio && p.peer != nil {
		audio = p.peer.AudioComponents()
	}
	if len(video) == 0 {
		trick = false
	}
	if len(video) == 0 && len(audio) == 0 {
		Log.Errorf("[%s] insufficient stream information, no pat/pmt?", p.uniqueKey)
		return nil, 0
	}

	version := p.versionPmt
	pcrPid = p.components.PcrPid
	pmtPid := p.pmtPid
	if !p.havePmtPid {
		pmtPid = choosePmtPid(pcrPid, video, audio, trick)
	}

	pcrFound := false
	for _, v := range video {
		if v.Pid == pcrPid {
			pcrFound = true
		}
	}
	if !trick && !pcrFound {
		for _, a := range audio {
			if a.Pid == pcrPid {
				pcrFound = true
			}
		}
		if pcrFound {
			Log.Infof("[%s] possibly mc channel.", p.uniqueKey)
			p.isMcChannel = true
		}
	}

	if mcTrick && !trick {
		pcrFound = false
		version++
	}
	if !pcrFound {
		if trick {
			version++
		}
		switch {
		case len(video) > 0:
			pcrPid = video[0].Pid
		case !trick && len(audio) > 0:
			pcrPid = audio[0].Pid
		default:
			pcrPid = mpegts.PidNull
		}
	}
	if pmtPid >= mpegts.PidNull || pcrPid >= mpegts.PidNull {
		Log.Errorf("[%s] no valid pmt pid or pcr pid. pmt pid=%d, pcr pid=%d", p.uniqueKey, pmtPid, pcrPid)
		return nil, 0
	}

	info := mpegts.PatPmtInfo{
		ProgramNumber: p.program,
		PmtPid:        pmtPid,
		PcrPid:        pcrPid,
		PmtVersion:    version & 0x1f,
		Video:         video,
		TtsSize:       p.config.TtsSize,
	}
	filter := &p.pidFilterTrick
	if !trick {
		info.Audio = audio
		filter = &p.pidFilter
	}
	*filter = [pidCount]bool{}
	filter[pcrPid] = true
	for _, v := range video {
		filter[v.Pid] = true
	}
	for _, a := range info.Audio {
		filter[a.Pid] = true
	}

	buf = mpegts.PackPatPmt(info)
	Log.Debugf("[%s] generate pat/pmt. trick=%t, program=%d, pmt pid=%d, pcr pid=%d, version=%d, video=%d, audio=%d, len=%d",
		p.uniqueKey, trick, info.ProgramNumber, pmtPid, pcrPid, info.PmtVersion, len(video), len(info.Audio), len(buf))
	return buf, pcrPid
}

// choosePmtPid 输入流中没有PMT PID时，从0x10开始选一个未被占用的
func choosePmtPid(pcrPid uint16, video, audio []mpegts.Component, trick bool) uint16 {
	used := func(pid uint16) bool {
		if pid == pcrPid {
			return true
		}
		for _, v := range video {
			if v.Pid == pid {
				return true
			}
		}
		if !trick {
			for _, a := range audio {
				if a.Pid == pid {
					return true
				}
			}
		}
		return false
	}
	for pid := mpegts.PidFirstPmtCandidate; pid < mpegts.PidNull; pid++ {
		if !used(pid) {
			return pid
		}
	}
	return mpegts.PidNull
}

// sendPatPmt 插入当前的PAT+PMT，continuity_counter在各自的计数上递增
func (p *Processor) sendPatPmt(position float64) {
	buf, _ := p.selectPatPmt()
	if buf == nil {
		return
	}
	out := append(make([]byte, 0, len(buf)), buf...)
	tts := p.config.TtsSize
	for i := 0; i+p.packetSize <= len(out); i += p.packetSize {
		packet := out[i+tts:]
		if i == 0 {
			mpegts.SetCc(packet, p.patCc)
			p.patCc++
		} else {
			mpegts.SetCc(packet, p.pmtCc)
			p.pmtCc++
		}
	}
	p.sink.SendStreamCopy(p.track, out, position, position, 0)
}

// sectionOfPusiPacket 跳过pointer_field，返回从table_id开始到packet结尾的数据
func sectionOfPusiPacket(packet []byte) ([]byte, bool) {
	offset := mpegts.PayloadOffset(packet)
	if offset >= mpegts.PacketSize {
		return nil, false
	}
	payload := packet[offset:mpegts.PacketSize]
	start := 1 + int(payload[0])
	if start >= len(payload) {
		return nil, false
	}
	return payload[start:], true
}

// readPesPts packet需要是PES的第一个packet
func readPesPts(packet []byte) (mpegts.Uint33, bool) {
	offset := mpegts.PayloadOffset(packet)
	if offset+mpegts.PesFixedHeaderSize+5 > mpegts.PacketSize {
		return 0, false
	}
	payload := packet[offset:mpegts.PacketSize]
	if !mpegts.HasPesStartCode(payload) || payload[7]&0x80 == 0 {
		return 0, false
	}
	pts, _, err := mpegts.ReadTimestamp(payload[mpegts.PesFixedHeaderSize:])
	if err != nil {
		return 0, false
	}
	return pts, true
}
