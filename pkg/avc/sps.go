// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"fmt"

	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// Sps 只保存重写slice头部和判断隔行需要的字段
type Sps struct {
	ProfileIdc uint8
	LevelIdc   uint8
	SpsId      uint32

	ChromaFormatIdc         uint32
	SeparateColourPlaneFlag uint8

	Log2MaxFrameNumMinus4       uint32
	PicOrderCntType             uint32
	Log2MaxPicOrderCntLsbMinus4 uint32
	MaxPicOrderCount            uint32 // 1 << (Log2MaxPicOrderCntLsbMinus4+4)

	PicWidthInMbsMinusOne       uint32
	PicHeightInMapUnitsMinusOne uint32
	FrameMbsOnlyFlag            uint8

	Width  int
	Height int

	TimingInfoPresent bool
	NumUnitsInTick    uint32
	TimeScale         uint32
	TimeScaleBitPos   int // time_scale在rbsp中的比特位置，TimingInfoPresent为false时无效
}

func (sps *Sps) Interlaced() bool {
	return sps.FrameMbsOnlyFlag == 0
}

// Pps 只保存和SPS的对应关系
type Pps struct {
	PpsId uint32
	SpsId uint32
}

// ParseSps
//
// @param rbsp: 去掉NAL头部和emulation prevention byte之后的数据，首字节为profile_idc
//
// VUI部分解析失败不返回错误，此时TimingInfoPresent为false
func ParseSps(rbsp []byte) (sps Sps, err error) {
	c := NewBitCursor(base.Bytes(rbsp), 0, len(rbsp))
	if err = parseSpsBasic(c, &sps); err != nil {
		return sps, err
	}
	if err = parseSpsFrame(c, &sps); err != nil {
		return sps, err
	}
	if verr := parseSpsVui(c, &sps); verr != nil {
		Log.Debugf("parse sps vui failed. err=%+v", verr)
		sps.TimingInfoPresent = false
	}
	return sps, nil
}

func parseSpsBasic(c *BitCursor, sps *Sps) error {
	v, err := c.ReadBits(8)
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.ProfileIdc = uint8(v)

	// constraint_set0_flag ... reserved_zero_2bits
	if err = c.SkipBits(8); err != nil {
		return nazaerrors.Wrap(err)
	}

	v, err = c.ReadBits(8)
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.LevelIdc = uint8(v)

	sps.SpsId, err = c.ReadUe()
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.SpsId >= MaxSpsCount {
		return fmt.Errorf("%w. invalid sps id. id=%d", base.ErrAvc, sps.SpsId)
	}

	sps.ChromaFormatIdc = 1
	switch sps.ProfileIdc {
	case 44, 83, 86, 100, 110, 118, 122, 128, 244:
		sps.ChromaFormatIdc, err = c.ReadUe()
		if err != nil {
			return nazaerrors.Wrap(err)
		}
		if sps.ChromaFormatIdc == 3 {
			bit, err := c.ReadBit()
			if err != nil {
				return nazaerrors.Wrap(err)
			}
			sps.SeparateColourPlaneFlag = bit
		}
		// bit_depth_luma_minus8, bit_depth_chroma_minus8
		for i := 0; i < 2; i++ {
			if _, err = c.ReadUe(); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
		// qpprime_y_zero_transform_bypass_flag
		if err = c.SkipBits(1); err != nil {
			return nazaerrors.Wrap(err)
		}
		flag, err := c.ReadBit()
		if err != nil {
			return nazaerrors.Wrap(err)
		}
		if flag == 1 {
			n := 8
			if sps.ChromaFormatIdc == 3 {
				n = 12
			}
			for i := 0; i < n; i++ {
				present, err := c.ReadBit()
				if err != nil {
					return nazaerrors.Wrap(err)
				}
				if present == 0 {
					continue
				}
				size := 16
				if i >= 6 {
					size = 64
				}
				if err = skipScalingList(c, size); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func skipScalingList(c *BitCursor, size int) error {
	lastScale := int32(8)
	nextScale := int32(8)
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			delta, err := c.ReadSe()
			if err != nil {
				return nazaerrors.Wrap(err)
			}
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}

func parseSpsFrame(c *BitCursor, sps *Sps) error {
	var err error
	sps.Log2MaxFrameNumMinus4, err = c.ReadUe()
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.Log2MaxFrameNumMinus4 > 12 {
		return fmt.Errorf("%w. invalid log2_max_frame_num_minus4. v=%d", base.ErrAvc, sps.Log2MaxFrameNumMinus4)
	}

	sps.PicOrderCntType, err = c.ReadUe()
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	switch sps.PicOrderCntType {
	case 0:
		sps.Log2MaxPicOrderCntLsbMinus4, err = c.ReadUe()
		if err != nil {
			return nazaerrors.Wrap(err)
		}
		if sps.Log2MaxPicOrderCntLsbMinus4 > 12 {
			return fmt.Errorf("%w. invalid log2_max_pic_order_cnt_lsb_minus4. v=%d", base.ErrAvc, sps.Log2MaxPicOrderCntLsbMinus4)
		}
		sps.MaxPicOrderCount = 1 << (sps.Log2MaxPicOrderCntLsbMinus4 + 4)
	case 1:
		// delta_pic_order_always_zero_flag
		if err = c.SkipBits(1); err != nil {
			return nazaerrors.Wrap(err)
		}
		// offset_for_non_ref_pic, offset_for_top_to_bottom_field
		for i := 0; i < 2; i++ {
			if _, err = c.ReadSe(); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
		num, err := c.ReadUe()
		if err != nil {
			return nazaerrors.Wrap(err)
		}
		if num > 255 {
			return fmt.Errorf("%w. invalid num_ref_frames_in_pic_order_cnt_cycle. v=%d", base.ErrAvc, num)
		}
		for i := uint32(0); i < num; i++ {
			if _, err = c.ReadSe(); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
	}

	// max_num_ref_frames
	if _, err = c.ReadUe(); err != nil {
		return nazaerrors.Wrap(err)
	}
	// gaps_in_frame_num_value_allowed_flag
	if err = c.SkipBits(1); err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.PicWidthInMbsMinusOne, err = c.ReadUe()
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.PicHeightInMapUnitsMinusOne, err = c.ReadUe()
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.FrameMbsOnlyFlag, err = c.ReadBit()
	if err != nil {
		return nazaerrors.Wrap(err)
	}

	sps.Width = int(sps.PicWidthInMbsMinusOne+1) * 16
	sps.Height = int(sps.PicHeightInMapUnitsMinusOne+1) * 16
	if sps.FrameMbsOnlyFlag == 0 {
		sps.Height *= 2
		// mb_adaptive_frame_field_flag
		if err = c.SkipBits(1); err != nil {
			return nazaerrors.Wrap(err)
		}
	}
	return nil
}

func parseSpsVui(c *BitCursor, sps *Sps) error {
	// direct_8x8_inference_flag
	if err := c.SkipBits(1); err != nil {
		return nazaerrors.Wrap(err)
	}
	flag, err := c.ReadBit()
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	if flag == 1 {
		// frame_crop_left/right/top/bottom_offset
		for i := 0; i < 4; i++ {
			if _, err = c.ReadUe(); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
	}

	// vui_parameters_present_flag
	if flag, err = c.ReadBit(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if flag == 0 {
		return nil
	}

	// aspect_ratio_info_present_flag
	if flag, err = c.ReadBit(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if flag == 1 {
		idc, err := c.ReadBits(8)
		if err != nil {
			return nazaerrors.Wrap(err)
		}
		if idc == 255 {
			// Extended_SAR: sar_width, sar_height
			if err = c.SkipBits(32); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
	}

	// overscan_info_present_flag
	if flag, err = c.ReadBit(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if flag == 1 {
		if err = c.SkipBits(1); err != nil {
			return nazaerrors.Wrap(err)
		}
	}

	// video_signal_type_present_flag
	if flag, err = c.ReadBit(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if flag == 1 {
		// video_format, video_full_range_flag
		if err = c.SkipBits(4); err != nil {
			return nazaerrors.Wrap(err)
		}
		if flag, err = c.ReadBit(); err != nil {
			return nazaerrors.Wrap(err)
		}
		if flag == 1 {
			// colour_primaries, transfer_characteristics, matrix_coefficients
			if err = c.SkipBits(24); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
	}

	// chroma_loc_info_present_flag
	if flag, err = c.ReadBit(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if flag == 1 {
		for i := 0; i < 2; i++ {
			if _, err = c.ReadUe(); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
	}

	// timing_info_present_flag
	if flag, err = c.ReadBit(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if flag == 0 {
		return nil
	}
	if sps.NumUnitsInTick, err = c.ReadBits(32); err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.TimeScaleBitPos = c.BitPos()
	if sps.TimeScale, err = c.ReadBits(32); err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.TimingInfoPresent = true
	return nil
}

// ParsePps
//
// @param rbsp: 去掉NAL头部之后的数据
func ParsePps(rbsp []byte) (pps Pps, err error) {
	c := NewBitCursor(base.Bytes(rbsp), 0, len(rbsp))
	if pps.PpsId, err = c.ReadUe(); err != nil {
		return pps, nazaerrors.Wrap(err)
	}
	if pps.SpsId, err = c.ReadUe(); err != nil {
		return pps, nazaerrors.Wrap(err)
	}
	if pps.PpsId >= MaxPpsCount || pps.SpsId >= MaxSpsCount {
		return pps, fmt.Errorf("%w. invalid pps. pps id=%d, sps id=%d", base.ErrAvc, pps.PpsId, pps.SpsId)
	}
	return pps, nil
}

// RewriteTimeScale 修改rbsp中VUI的time_scale
func RewriteTimeScale(rbsp []byte, sps *Sps, timeScale uint32) error {
	if !sps.TimingInfoPresent {
		return base.ErrAvc
	}
	c := NewBitCursor(base.Bytes(rbsp), 0, len(rbsp))
	c.Seek(sps.TimeScaleBitPos)
	if err := c.PutBits(32, timeScale); err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.TimeScale = timeScale
	return nil
}
