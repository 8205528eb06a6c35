// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"github.com/q191201771/lalts/pkg/base"
)

// H264Scanner 处理视频ES中的start code
//
// - SPS: 判断是否隔行，I帧模式下隔行流重写VUI的time_scale
// - PPS: 记录pps到sps的映射
// - slice: I帧模式下用递增的计数重写pic_order_cnt_lsb
type H264Scanner struct {
	sps     [MaxSpsCount]Sps
	haveSps [MaxSpsCount]bool
	pps     [MaxPpsCount]Pps
	havePps [MaxPpsCount]bool

	ionly             bool
	apparentFrameRate int

	interlaced      bool
	interlacedKnown bool
	width           int
	height          int

	picOrderCount       uint32
	updatePicOrderCount bool
	currSpsId           uint32

	rbsp []byte
	ebsp []byte
}

func NewH264Scanner(apparentFrameRate int) *H264Scanner {
	return &H264Scanner{
		apparentFrameRate: apparentFrameRate,
	}
}

// SetIonly 是否处于只保留I帧的重打时间戳模式
func (s *H264Scanner) SetIonly(ionly bool) {
	s.ionly = ionly
}

func (s *H264Scanner) RemainderLimit() int {
	return ScanRemainderSize
}

// OnPesStart 遇到新的视频PES
func (s *H264Scanner) OnPesStart() {
	if s.ionly {
		s.updatePicOrderCount = true
	}
}

func (s *H264Scanner) NeedInterlaceProbe() bool {
	return !s.interlacedKnown
}

func (s *H264Scanner) InterlacedKnown() bool {
	return s.interlacedKnown
}

func (s *H264Scanner) Interlaced() bool {
	return s.interlaced
}

func (s *H264Scanner) FrameSize() (width, height int) {
	return s.width, s.height
}

// ProcessStartCode store中pos处为 00 00 01
//
// @return keepScanning: false表示当前PES不需要继续扫描
func (s *H264Scanner) ProcessStartCode(store base.ByteStore, pos int) (keepScanning bool) {
	if pos+4 >= store.Len() {
		return true
	}
	nalType := CalcNaluType(store.ByteAt(pos + 3))
	switch nalType {
	case NaluUnitTypeSlice, NaluUnitTypeIDRSlice:
		if s.interlacedKnown && s.ionly {
			return s.processSlice(store, pos, nalType)
		}
	case NaluUintTypeSPS:
		return s.processSps(store, pos)
	case NaluUintTypePPS:
		if s.interlacedKnown && s.ionly {
			s.processPps(store, pos)
		}
	}
	return true
}

func (s *H264Scanner) processSps(store base.ByteStore, pos int) bool {
	start := pos + 4
	end, found := FindNaluEnd(store, start)
	s.rbsp = EbspToRbsp(s.rbsp, store, start, end)

	sps, err := ParseSps(s.rbsp)
	if err != nil {
		Log.Warnf("parse sps failed, skip this nalu. err=%+v", err)
		return true
	}
	s.sps[sps.SpsId] = sps
	s.haveSps[sps.SpsId] = true
	s.interlaced = sps.Interlaced()
	s.interlacedKnown = true
	s.width, s.height = sps.Width, sps.Height

	if s.interlaced && s.ionly && sps.TimingInfoPresent {
		s.rewriteTimeScale(store, start, end, found, &sps)
	}
	Log.Debugf("h264 sequence frame size %dx%d interlaced=%t", s.width, s.height, s.interlaced)

	if !s.ionly || !s.updatePicOrderCount {
		return false
	}
	// I帧模式下需要继续扫描到slice，更新pic_order_cnt_lsb
	return true
}

func (s *H264Scanner) rewriteTimeScale(store base.ByteStore, start, end int, found bool, sps *Sps) {
	if !found {
		// SPS被segment截断，只用于解析，不写回
		return
	}
	ts := uint32(s.apparentFrameRate * 2 * 1000)
	if err := RewriteTimeScale(s.rbsp, sps, ts); err != nil {
		Log.Warnf("rewrite sps time_scale failed. err=%+v", err)
		return
	}
	s.ebsp = RbspToEbsp(s.ebsp, s.rbsp)
	if len(s.ebsp) != end-start {
		Log.Warnf("sps size changed after rewriting time_scale, skip. origin=%d, new=%d", end-start, len(s.ebsp))
		return
	}
	for i, b := range s.ebsp {
		store.SetByteAt(start+i, b)
	}
	s.sps[sps.SpsId] = *sps
}

func (s *H264Scanner) processPps(store base.ByteStore, pos int) {
	start := pos + 4
	end, _ := FindNaluEnd(store, start)
	s.rbsp = EbspToRbsp(s.rbsp, store, start, end)
	pps, err := ParsePps(s.rbsp)
	if err != nil {
		Log.Warnf("parse pps failed, skip this nalu. err=%+v", err)
		return
	}
	s.pps[pps.PpsId] = pps
	s.havePps[pps.PpsId] = true
}

// processSlice 重写slice头部的pic_order_cnt_lsb，slice头部在emulation prevention之前的位置不会出现 00 00 03
func (s *H264Scanner) processSlice(store base.ByteStore, pos int, nalType uint8) bool {
	// first_mb_in_slice为0时，ue(v)编码为单个比特1
	if store.ByteAt(pos+4)&0x80 == 0 {
		return true
	}
	c := NewBitCursor(store, pos+4, store.Len())
	_ = c.SkipBits(1)

	sliceType, err := c.ReadUe()
	if err != nil {
		return true
	}
	ppsId, err := c.ReadUe()
	if err != nil || ppsId >= MaxPpsCount || !s.havePps[ppsId] {
		Log.Debugf("slice refers to unknown pps. pps id=%d, err=%+v", ppsId, err)
		return true
	}
	s.currSpsId = s.pps[ppsId].SpsId
	if !s.haveSps[s.currSpsId] {
		return true
	}
	sps := &s.sps[s.currSpsId]
	if sps.PicOrderCntType != 0 {
		return true
	}

	if sps.SeparateColourPlaneFlag == 1 {
		// colour_plane_id
		if c.SkipBits(2) != nil {
			return true
		}
	}
	// frame_num
	if c.SkipBits(int(sps.Log2MaxFrameNumMinus4)+4) != nil {
		return true
	}
	if sps.FrameMbsOnlyFlag == 0 {
		fieldPicFlag, err := c.ReadBit()
		if err != nil {
			return true
		}
		if fieldPicFlag == 1 {
			// bottom_field_flag
			if c.SkipBits(1) != nil {
				return true
			}
		}
	}
	if nalType == NaluUnitTypeIDRSlice {
		// idr_pic_id
		if _, err = c.ReadUe(); err != nil {
			return true
		}
	}

	if err = c.PutBits(int(sps.Log2MaxPicOrderCntLsbMinus4)+4, s.picOrderCount); err != nil {
		return true
	}
	Log.Debugf("rewrite pic_order_cnt_lsb. slice type=%s, poc=%d", CalcSliceTypeReadable(sliceType), s.picOrderCount)
	s.picOrderCount++
	if s.picOrderCount == sps.MaxPicOrderCount {
		s.picOrderCount = 0
	}
	s.updatePicOrderCount = false
	return false
}
