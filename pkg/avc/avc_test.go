// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"errors"
	"testing"

	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/naza/pkg/assert"
)

// bitBuilder 测试用，按比特拼接码流
type bitBuilder struct {
	b     []byte
	nbits int
}

func (bb *bitBuilder) u(n int, v uint32) *bitBuilder {
	for i := n - 1; i >= 0; i-- {
		if bb.nbits%8 == 0 {
			bb.b = append(bb.b, 0)
		}
		if (v>>uint(i))&1 == 1 {
			bb.b[len(bb.b)-1] |= 0x80 >> uint(bb.nbits%8)
		}
		bb.nbits++
	}
	return bb
}

func (bb *bitBuilder) ue(v uint32) *bitBuilder {
	v++
	n := 0
	for x := v; x > 1; x >>= 1 {
		n++
	}
	bb.u(n, 0)
	return bb.u(n+1, v)
}

func (bb *bitBuilder) se(v int32) *bitBuilder {
	if v > 0 {
		return bb.ue(uint32(2*v - 1))
	}
	return bb.ue(uint32(-2 * v))
}

// trailing rbsp_stop_one_bit + 对齐
func (bb *bitBuilder) trailing() []byte {
	bb.u(1, 1)
	for bb.nbits%8 != 0 {
		bb.u(1, 0)
	}
	return bb.b
}

// 1920x1088 隔行, poc type 0, 6比特的pic_order_cnt_lsb, 带timing info
func buildSpsRbsp(interlaced bool, timeScale uint32) []byte {
	bb := &bitBuilder{}
	bb.u(8, 77).u(8, 0).u(8, 40) // profile main, constraint, level
	bb.ue(0)                     // sps id
	bb.ue(0)                     // log2_max_frame_num_minus4
	bb.ue(0)                     // pic_order_cnt_type
	bb.ue(2)                     // log2_max_pic_order_cnt_lsb_minus4
	bb.ue(1)                     // max_num_ref_frames
	bb.u(1, 0)                   // gaps
	bb.ue(119)                   // pic_width_in_mbs_minus1
	if interlaced {
		bb.ue(33)
		bb.u(1, 0) // frame_mbs_only_flag
		bb.u(1, 1) // mb_adaptive_frame_field_flag
	} else {
		bb.ue(67)
		bb.u(1, 1)
	}
	bb.u(1, 1)                             // direct_8x8_inference_flag
	bb.u(1, 0)                             // frame_cropping_flag
	bb.u(1, 1)                             // vui_parameters_present_flag
	bb.u(1, 1).u(8, 255).u(16, 1).u(16, 1) // aspect ratio, Extended_SAR
	bb.u(1, 0)                             // overscan
	bb.u(1, 1).u(3, 5).u(1, 0).u(1, 0)     // video signal type, no colour description
	bb.u(1, 0)                             // chroma loc
	bb.u(1, 1).u(32, 1001).u(32, timeScale).u(1, 1)
	bb.u(1, 0).u(1, 0) // nal/vcl hrd
	bb.u(1, 0)         // pic_struct_present_flag
	bb.u(1, 0)         // bitstream_restriction_flag
	return bb.trailing()
}

func buildPpsRbsp() []byte {
	bb := &bitBuilder{}
	bb.ue(0).ue(0) // pps id, sps id
	bb.u(1, 0).u(1, 0)
	return bb.trailing()
}

// idr slice头部，pic_order_cnt_lsb为poc
func buildIdrSliceRbsp(poc uint32) []byte {
	bb := &bitBuilder{}
	bb.ue(0)     // first_mb_in_slice
	bb.ue(7)     // slice_type I
	bb.ue(0)     // pps id
	bb.u(4, 0)   // frame_num
	bb.u(1, 0)   // field_pic_flag
	bb.ue(0)     // idr_pic_id
	bb.u(6, poc) // pic_order_cnt_lsb
	bb.u(16, 0xabcd)
	return bb.trailing()
}

func annexb(nalHeader byte, rbsp []byte) []byte {
	out := []byte{0, 0, 1, nalHeader}
	return append(out, RbspToEbsp(nil, rbsp)...)
}

func TestBitCursor(t *testing.T) {
	bb := &bitBuilder{}
	bb.ue(0).ue(1).ue(2).ue(254).se(-3).se(4).u(5, 0x15)
	data := bb.trailing()

	c := NewBitCursor(base.Bytes(data), 0, len(data))
	for _, expected := range []uint32{0, 1, 2, 254} {
		v, err := c.ReadUe()
		assert.Equal(t, nil, err)
		assert.Equal(t, expected, v)
	}
	sv, err := c.ReadSe()
	assert.Equal(t, nil, err)
	assert.Equal(t, int32(-3), sv)
	sv, err = c.ReadSe()
	assert.Equal(t, nil, err)
	assert.Equal(t, int32(4), sv)

	pos := c.BitPos()
	v, err := c.ReadBits(5)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(0x15), v)

	c.Seek(pos)
	assert.Equal(t, nil, c.PutBits(5, 0x0a))
	c.Seek(pos)
	v, _ = c.ReadBits(5)
	assert.Equal(t, uint32(0x0a), v)

	// 越界
	c.Seek(len(data) * 8)
	_, err = c.ReadBit()
	assert.Equal(t, true, errors.Is(err, base.ErrBitstreamEnd))
	_, err = c.ReadUe()
	assert.Equal(t, true, errors.Is(err, base.ErrBitstreamEnd))
	assert.Equal(t, true, errors.Is(c.PutBits(1, 1), base.ErrBitstreamEnd))

	zeros := make([]byte, 8)
	c = NewBitCursor(base.Bytes(zeros), 0, len(zeros))
	_, err = c.ReadUe()
	assert.Equal(t, true, errors.Is(err, base.ErrGolombTooLong))
}

func TestEbsp(t *testing.T) {
	rbsp := []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x03}
	ebsp := RbspToEbsp(nil, rbsp)
	assert.Equal(t, []byte{0x00, 0x00, 0x03, 0x01, 0x00, 0x00, 0x03, 0x00, 0x05, 0x00, 0x00, 0x03, 0x03}, ebsp)
	assert.Equal(t, rbsp, EbspToRbsp(nil, base.Bytes(ebsp), 0, len(ebsp)))

	end, found := FindNaluEnd(base.Bytes([]byte{0x67, 0x00, 0x00, 0x03, 0x00, 0x00, 0x01, 0x68}), 0)
	assert.Equal(t, 4, end)
	assert.Equal(t, true, found)
	end, found = FindNaluEnd(base.Bytes([]byte{0x67, 0x00, 0x00}), 0)
	assert.Equal(t, 3, end)
	assert.Equal(t, false, found)
}

func TestParseSps(t *testing.T) {
	sps, err := ParseSps(buildSpsRbsp(true, 60000))
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(77), sps.ProfileIdc)
	assert.Equal(t, uint32(0), sps.SpsId)
	assert.Equal(t, uint32(2), sps.Log2MaxPicOrderCntLsbMinus4)
	assert.Equal(t, uint32(64), sps.MaxPicOrderCount)
	assert.Equal(t, true, sps.Interlaced())
	assert.Equal(t, 1920, sps.Width)
	assert.Equal(t, 1088, sps.Height)
	assert.Equal(t, true, sps.TimingInfoPresent)
	assert.Equal(t, uint32(1001), sps.NumUnitsInTick)
	assert.Equal(t, uint32(60000), sps.TimeScale)

	sps, err = ParseSps(buildSpsRbsp(false, 50))
	assert.Equal(t, nil, err)
	assert.Equal(t, false, sps.Interlaced())
	assert.Equal(t, 1088, sps.Height)

	// 被截断
	rbsp := buildSpsRbsp(true, 60000)
	_, err = ParseSps(rbsp[:5])
	assert.IsNotNil(t, err)

	// 截断在VUI中，基础字段仍然有效
	sps, err = ParseSps(rbsp[:len(rbsp)-6])
	assert.Equal(t, nil, err)
	assert.Equal(t, true, sps.Interlaced())
	assert.Equal(t, false, sps.TimingInfoPresent)

	pps, err := ParsePps(buildPpsRbsp())
	assert.Equal(t, nil, err)
	assert.Equal(t, Pps{PpsId: 0, SpsId: 0}, pps)
}

func TestParseSpsHighProfile(t *testing.T) {
	bb := &bitBuilder{}
	bb.u(8, 100).u(8, 0).u(8, 40)
	bb.ue(1)   // sps id
	bb.ue(1)   // chroma_format_idc
	bb.ue(0)   // bit_depth_luma_minus8
	bb.ue(0)   // bit_depth_chroma_minus8
	bb.u(1, 0) // qpprime
	bb.u(1, 1) // seq_scaling_matrix_present_flag
	bb.u(1, 1) // list 0 present
	bb.se(-8)  // delta_scale -> next_scale 0，列表结束
	bb.u(7, 0) // list 1..7 absent
	bb.ue(4)   // log2_max_frame_num_minus4
	bb.ue(2)   // pic_order_cnt_type
	bb.ue(1)   // max_num_ref_frames
	bb.u(1, 0) // gaps
	bb.ue(79)  // width 1280
	bb.ue(44)  // height 720
	bb.u(1, 1) // frame_mbs_only_flag
	bb.u(1, 1) // direct_8x8
	bb.u(1, 0) // cropping
	bb.u(1, 0) // vui
	sps, err := ParseSps(bb.trailing())
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(1), sps.SpsId)
	assert.Equal(t, uint32(4), sps.Log2MaxFrameNumMinus4)
	assert.Equal(t, uint32(2), sps.PicOrderCntType)
	assert.Equal(t, 1280, sps.Width)
	assert.Equal(t, 720, sps.Height)
	assert.Equal(t, false, sps.TimingInfoPresent)
}

func scanAll(s *H264Scanner, store base.ByteStore) {
	keep := true
	for i := 0; i+3 < store.Len(); i++ {
		if !keep {
			break
		}
		if base.HasStartCodeAt(store, i) {
			keep = s.ProcessStartCode(store, i)
		}
	}
}

func TestH264ScannerInterlaceProbe(t *testing.T) {
	var es []byte
	es = append(es, annexb(0x67, buildSpsRbsp(true, 60000))...)
	es = append(es, annexb(0x68, buildPpsRbsp())...)
	es = append(es, annexb(0x65, buildIdrSliceRbsp(42))...)
	origin := append([]byte(nil), es...)

	s := NewH264Scanner(10)
	assert.Equal(t, true, s.NeedInterlaceProbe())
	scanAll(s, base.Bytes(es))
	assert.Equal(t, true, s.InterlacedKnown())
	assert.Equal(t, true, s.Interlaced())
	w, h := s.FrameSize()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1088, h)

	// 非I帧模式下不修改任何数据
	assert.Equal(t, origin, es)
}

func TestH264ScannerIonly(t *testing.T) {
	var es []byte
	es = append(es, annexb(0x67, buildSpsRbsp(true, 60000))...)
	es = append(es, annexb(0x68, buildPpsRbsp())...)
	sliceStart := len(es)
	es = append(es, annexb(0x65, buildIdrSliceRbsp(42))...)

	s := NewH264Scanner(10)
	s.SetIonly(true)

	// 第一次扫描只能拿到SPS，第二次扫描才处理PPS和slice
	scanAll(s, base.Bytes(es))
	s.OnPesStart()
	scanAll(s, base.Bytes(es))

	store := base.Bytes(es)
	rbsp := EbspToRbsp(nil, store, sliceStart+4, len(es))
	assert.Equal(t, buildIdrSliceRbsp(0), rbsp)

	// VUI time_scale改为 10*2*1000
	end, _ := FindNaluEnd(store, 4)
	sps, err := ParseSps(EbspToRbsp(nil, store, 4, end))
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(20000), sps.TimeScale)

	// 下一个PES，计数递增
	s.OnPesStart()
	slice := annexb(0x65, buildIdrSliceRbsp(42))
	scanAll(s, base.Bytes(slice))
	assert.Equal(t, buildIdrSliceRbsp(1), EbspToRbsp(nil, base.Bytes(slice), 4, len(slice)))
}

func TestH264ScannerPocWrap(t *testing.T) {
	var es []byte
	es = append(es, annexb(0x67, buildSpsRbsp(true, 60000))...)
	es = append(es, annexb(0x68, buildPpsRbsp())...)
	s := NewH264Scanner(10)
	s.SetIonly(true)
	scanAll(s, base.Bytes(es))
	s.OnPesStart()
	scanAll(s, base.Bytes(es))

	for i := 0; i < 64; i++ {
		s.OnPesStart()
		scanAll(s, base.Bytes(annexb(0x65, buildIdrSliceRbsp(42))))
	}
	s.OnPesStart()
	slice := annexb(0x65, buildIdrSliceRbsp(42))
	scanAll(s, base.Bytes(slice))
	assert.Equal(t, buildIdrSliceRbsp(0), EbspToRbsp(nil, base.Bytes(slice), 4, len(slice)))
}

func TestH264ScannerCorruptSps(t *testing.T) {
	rbsp := buildSpsRbsp(true, 60000)
	es := annexb(0x67, rbsp[:4])
	s := NewH264Scanner(10)
	scanAll(s, base.Bytes(es))
	assert.Equal(t, false, s.InterlacedKnown())
}
