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
	"github.com/q191201771/naza/pkg/nazabytes"
)

const sentCountLogInterval = 150

// Demuxer 单个PID的PES解析，组装完整的ES单元后交给sink
//
// 输出时间戳 = position + (pts - basePts) / 90000
type Demuxer struct {
	uniqueKey string
	mediaType base.MediaType
	sink      ISink

	state            pesState
	pesHeader        []byte
	headerExtLen     int
	headerExtRead    int
	es               *nazabytes.Buffer
	position         float64
	duration         float64
	trickmode        bool
	finalizedBasePts bool

	basePts     mpegts.Uint33
	haveBasePts bool

	currentPts     mpegts.Uint33
	haveCurrentPts bool
	currentDts     mpegts.Uint33
	haveCurrentDts bool

	firstPts      mpegts.Uint33
	haveFirstPts  bool
	reachedSteady bool
	sentEsCount   int
}

func NewDemuxer(mediaType base.MediaType, sink ISink) *Demuxer {
	d := &Demuxer{
		uniqueKey: base.GenUkDemuxer(),
		mediaType: mediaType,
		sink:      sink,
		pesHeader: make([]byte, 0, mpegts.PesFixedHeaderSize),
		es:        nazabytes.NewBuffer(64 * 1024),
	}
	d.Init(0, 0, false, true)
	Log.Debugf("[%s] lifecycle new demuxer. type=%s", d.uniqueKey, mediaType)
	return d
}

func (d *Demuxer) UniqueKey() string {
	return d.uniqueKey
}

func (d *Demuxer) MediaType() base.MediaType {
	return d.mediaType
}

// Init 每个segment开始或者遇到不连续时调用
//
// @param resetBasePts: 为true时，下一个有效的PTS会重新确定base pts
func (d *Demuxer) Init(position, duration float64, trickmode bool, resetBasePts bool) {
	d.position = position
	d.duration = duration
	d.trickmode = trickmode
	if resetBasePts {
		d.haveBasePts = false
	}
	d.haveCurrentPts = false
	d.haveCurrentDts = false
	d.haveFirstPts = false
	d.finalizedBasePts = false
	d.resetBuffers()
	Log.Debugf("[%s] init. position=%f, duration=%f, trickmode=%t, reset base pts=%t", d.uniqueKey, position, duration, trickmode, resetBasePts)
}

// Flush 发送还没有发送的ES，不清除base pts
func (d *Demuxer) Flush() {
	if d.es.Len() > 0 {
		Log.Infof("[%s] flush remaining es. len=%d", d.uniqueKey, d.es.Len())
		d.send()
	}
	Log.Infof("[%s] sent %d es in duration %f", d.uniqueKey, d.sentEsCount, d.duration)
	d.resetBuffers()
}

// Reset 丢弃所有缓存并且恢复到初始状态
func (d *Demuxer) Reset() {
	d.resetBuffers()
	d.haveBasePts = false
	d.haveCurrentPts = false
	d.haveCurrentDts = false
	d.haveFirstPts = false
	d.finalizedBasePts = false
	d.reachedSteady = false
}

func (d *Demuxer) SetBasePts(basePts mpegts.Uint33, isFinal bool) {
	if !d.trickmode {
		Log.Infof("[%s] set base pts. type=%s, base pts=%s, final=%t", d.uniqueKey, d.mediaType, basePts, isFinal)
	}
	d.basePts = basePts
	d.haveBasePts = true
	d.finalizedBasePts = isFinal
}

// BasePts 还没有确定时ok为false
func (d *Demuxer) BasePts() (basePts mpegts.Uint33, ok bool) {
	return d.basePts, d.haveBasePts
}

// ProcessPacket
//
// @param packet: 一个完整的188字节TS packet，PID属于这个demuxer
//
// @param applyOffset: 首次确定base pts时是否预留MaxFirstPtsOffset
func (d *Demuxer) ProcessPacket(packet []byte, applyOffset bool) (r ProcessResult) {
	if len(packet) < mpegts.PacketSize {
		Log.Warnf("[%s] packet too short. len=%d", d.uniqueKey, len(packet))
		return
	}
	if !mpegts.HasPayload(packet) {
		Log.Debugf("[%s] no payload in packet. flag=0x%x", d.uniqueKey, packet[3])
		return
	}
	offset := mpegts.PayloadOffset(packet)
	if offset >= mpegts.PacketSize {
		return
	}
	payload := packet[offset:mpegts.PacketSize]

	if mpegts.IsPayloadUnitStart(packet) {
		if d.es.Len() > 0 {
			r.PtsError = d.send()
		}
		if mpegts.HasPesStartCode(payload) {
			r.BasePtsUpdated = d.onPesHeader(payload, applyOffset)
		} else {
			Log.Warnf("[%s] pes start code check failed. payload=% x", d.uniqueKey, nazabytes.Prefix(payload, 3))
			if !d.haveCurrentPts {
				Log.Warnf("[%s] ignore packet without pes data before the first pts", d.uniqueKey)
				r.PacketIgnored = true
				return
			}
		}
	}

	if !d.haveFirstPts && d.haveCurrentPts {
		d.firstPts = d.currentPts
		d.haveFirstPts = true
		if !d.trickmode && d.mediaType == base.MediaTypeVideo {
			d.sink.NotifyFirstVideoPts(d.firstPts.Value())
			d.sink.NotifyVideoBasePts(d.basePts.Value())
		}
	}

	if mpegts.IsPayloadUnitStart(packet) {
		d.state = pesStateGettingHeader
		d.pesHeader = d.pesHeader[:0]
	}
	d.feed(payload)
	return
}

// onPesHeader 处理PUSI packet中的PES头部，更新pts/dts，必要时确定base pts
func (d *Demuxer) onPesHeader(payload []byte, applyOffset bool) (basePtsUpdated bool) {
	pes, _, err := mpegts.ParsePes(payload)
	if err != nil {
		Log.Warnf("[%s] parse pes header failed. err=%+v", d.uniqueKey, err)
		return false
	}
	if !pes.Optional {
		Log.Warnf("[%s] optional pes header not present. len=%d, header=% x", d.uniqueKey, len(payload), nazabytes.Prefix(payload, mpegts.PesFixedHeaderSize))
		return false
	}
	if !pes.HasPts {
		Log.Warnf("[%s] pts not present. pts dts flag=%d, err=%v", d.uniqueKey, pes.PtsDtsFlag, pes.PtsErr)
	} else {
		if d.haveCurrentPts && d.currentPts.After(pes.Pts) && d.currentPts.Sub(pes.Pts) > mpegts.Uint33HalfMax {
			Log.Warnf("[%s] pts rollover. type=%s, %s -> %s", d.uniqueKey, d.mediaType, d.currentPts, pes.Pts)
		}
		d.currentPts = pes.Pts
		d.haveCurrentPts = true
		if !d.finalizedBasePts {
			d.finalizeBasePts(applyOffset)
			basePtsUpdated = true
		}
	}

	if pes.HasDts {
		d.currentDts = pes.Dts
		d.haveCurrentDts = true
	} else {
		d.haveCurrentDts = false
	}
	return
}

func (d *Demuxer) finalizeBasePts(applyOffset bool) {
	d.finalizedBasePts = true
	cur := d.currentPts

	anchor := func() mpegts.Uint33 {
		if applyOffset {
			return cur.Sub(MaxFirstPtsOffset)
		}
		return cur
	}

	if !d.trickmode {
		switch {
		case !d.haveBasePts:
			d.basePts = anchor()
			d.haveBasePts = true
			Log.Infof("[%s] base pts not initialized, update to %s. type=%s", d.uniqueKey, d.basePts, d.mediaType)
		case cur.Before(d.basePts):
			orig := d.basePts
			if cur.Value() > MaxFirstPtsOffset.Value() {
				d.basePts = anchor()
			} else {
				d.basePts = cur
			}
			Log.Warnf("[%s] current pts < base pts. type=%s, current=%s, base %s -> %s", d.uniqueKey, d.mediaType, cur, orig, d.basePts)
		default:
			delta := cur.Sub(d.basePts)
			if delta > MaxFirstPtsOffset {
				orig := d.basePts
				d.basePts = anchor()
				Log.Infof("[%s] pts delta beyond max first pts offset. type=%s, delta=%d, base %s -> %s", d.uniqueKey, d.mediaType, delta.Value(), orig, d.basePts)
			} else {
				Log.Infof("[%s] pts in range. type=%s, delta=%d, base=%s", d.uniqueKey, d.mediaType, delta.Value(), d.basePts)
			}
		}
	}

	if !d.haveBasePts {
		d.basePts = cur
		d.haveBasePts = true
		Log.Warnf("[%s] base pts not available, update to pts %s", d.uniqueKey, cur)
	} else if d.basePts.After(cur) {
		Log.Warnf("[%s] base pts update from %s to %s", d.uniqueKey, d.basePts, cur)
		d.basePts = cur
	}
}

func (d *Demuxer) feed(data []byte) {
	for len(data) > 0 {
		switch d.state {
		case pesStateWaitingForHeader:
			Log.Warnf("[%s] waiting for pes header, discard data. type=%s, size=%d", d.uniqueKey, d.mediaType, len(data))
			return
		case pesStateGettingHeader:
			n := mpegts.PesFixedHeaderSize - len(d.pesHeader)
			if n > len(data) {
				n = len(data)
			}
			d.pesHeader = append(d.pesHeader, data[:n]...)
			data = data[n:]
			if len(d.pesHeader) < mpegts.PesFixedHeaderSize {
				break
			}
			if !mpegts.HasPesStartCode(d.pesHeader) {
				Log.Warnf("[%s] pes start code check failed. header=% x", d.uniqueKey, d.pesHeader[:3])
				d.state = pesStateWaitingForHeader
				break
			}
			if d.pesHeader[6]&0xc0 != 0x80 {
				Log.Warnf("[%s] optional pes header not present. flag=0x%x", d.uniqueKey, d.pesHeader[6])
				d.state = pesStateWaitingForHeader
				break
			}
			d.state = pesStateGettingHeaderExtension
			d.headerExtLen = int(d.pesHeader[8])
			d.headerExtRead = 0
		case pesStateGettingHeaderExtension:
			n := d.headerExtLen - d.headerExtRead
			if n > len(data) {
				n = len(data)
			}
			data = data[n:]
			d.headerExtRead += n
			if d.headerExtRead == d.headerExtLen {
				d.state = pesStateGettingEs
			}
		case pesStateGettingEs:
			d.es.Write(data)
			return
		}
	}
	// pes头部的扩展长度为0时，需要在这里完成状态切换
	if d.state == pesStateGettingHeaderExtension && d.headerExtRead == d.headerExtLen {
		d.state = pesStateGettingEs
	}
}

// send
//
// @return ptsError: 稳定状态下PTS早于base pts超过MaxFirstPtsOffset
func (d *Demuxer) send() (ptsError bool) {
	defer d.es.Reset()

	if !d.reachedSteady {
		if d.haveBasePts && d.haveCurrentPts &&
			(d.basePts.After(d.currentPts) || (d.haveCurrentDts && d.basePts.After(d.currentDts))) {
			Log.Warnf("[%s] discard es. type=%s, position=%f, base pts=%s, current pts=%s, len=%d",
				d.uniqueKey, d.mediaType, d.position, d.basePts, d.currentPts, d.es.Len())
			return false
		}
		d.reachedSteady = true
	} else if !d.trickmode && d.haveBasePts && d.finalizedBasePts && d.haveCurrentPts &&
		d.currentPts.Before(d.basePts) && d.basePts.Sub(d.currentPts) > MaxFirstPtsOffset {
		Log.Warnf("[%s] pts error, current pts before base pts. type=%s, base pts=%s, current pts=%s",
			d.uniqueKey, d.mediaType, d.basePts, d.currentPts)
		return true
	}

	pts := d.position
	if !d.trickmode && d.haveBasePts && d.haveCurrentPts {
		pts += float64(d.currentPts.Delta(d.basePts)) / 90000
	}
	dts := pts
	if !d.trickmode && d.haveBasePts && d.haveCurrentDts {
		dts = d.position + float64(d.currentDts.Delta(d.basePts))/90000
	}
	Log.Debugf("[%s] send. type=%s, pts=%f, dts=%f, len=%d", d.uniqueKey, d.mediaType, pts, dts, d.es.Len())
	d.sink.SendStreamCopy(d.mediaType, d.es.Bytes(), pts, dts, d.duration)

	d.sentEsCount++
	if d.sentEsCount%sentCountLogInterval == 0 {
		Log.Debugf("[%s] sent %d es. type=%s", d.uniqueKey, d.sentEsCount, d.mediaType)
	}
	return false
}

func (d *Demuxer) resetBuffers() {
	d.es.Reset()
	d.pesHeader = d.pesHeader[:0]
	d.state = pesStateWaitingForHeader
	d.sentEsCount = 0
}
