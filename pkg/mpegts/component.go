// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "github.com/q191201771/lalts/pkg/base"

// MaxComponents 每种类型最多记录的流个数
const MaxComponents = 8

// Component PMT中的一路ES
type Component struct {
	Pid        uint16
	StreamType uint8
	Language   string            // ISO639，只有音频有
	Format     base.StreamFormat // 由StreamType推导，私有PES由AC3/EAC3 descriptor推导
}

// ProgramComponents 一个PMT section解析后的结果
type ProgramComponents struct {
	ProgramNumber uint16
	Version       uint8
	PcrPid        uint16

	Video []Component
	Audio []Component

	DsmCc      Component
	HaveDsmCc  bool
	IsH264     bool // 存在H.264视频
	IndexAudio bool // 没有视频，并且PCR在某一路音频上
}

func IsVideoStreamType(st uint8) bool {
	switch st {
	case StreamTypeMpeg2Video, StreamTypeHevc, StreamTypeAtscVideo, StreamTypeAvc:
		return true
	}
	return false
}

func IsAudioStreamType(st uint8) bool {
	switch st {
	case StreamTypeMpeg1Audio, StreamTypeMpeg2Audio, StreamTypeAacAdts, StreamTypeAacLatm,
		StreamTypeAtscAc3, StreamTypeHdmvDts, StreamTypeLpcmAudio, StreamTypeAtscAc3Plus,
		StreamTypeDtsHdAudio, StreamTypeAtscEac3, StreamTypeDtsAudio, StreamTypeAc3Audio, StreamTypeSddsAudio:
		return true
	}
	return false
}

// FormatForStreamType stream_type到容器格式的映射，不确定的返回Unknown
func FormatForStreamType(st uint8) base.StreamFormat {
	switch st {
	case StreamTypeMpeg2Video:
		return base.StreamFormatVideoEsMpeg2
	case StreamTypeMpeg1Audio, StreamTypeMpeg2Audio, StreamTypeAacAdts, StreamTypeAacLatm:
		return base.StreamFormatAudioEsAac
	case StreamTypeAvc:
		return base.StreamFormatVideoEsH264
	case StreamTypeHevc:
		return base.StreamFormatVideoEsHevc
	case StreamTypeAtscAc3:
		return base.StreamFormatAudioEsAc3
	case StreamTypeAtscAc3Plus, StreamTypeAtscEac3:
		return base.StreamFormatAudioEsEc3
	}
	return base.StreamFormatUnknown
}

// ClassifyPmt 把PMT中的ES分为视频、音频、DSM-CC
func ClassifyPmt(pmt *Pmt) (pc ProgramComponents) {
	pc.ProgramNumber = pmt.Pn
	pc.Version = pmt.Vn
	pc.PcrPid = pmt.PcrPid

	for _, ppe := range pmt.ProgramElements {
		switch {
		case IsVideoStreamType(ppe.StreamType):
			if len(pc.Video) >= MaxComponents {
				Log.Warnf("pmt contains more than %d video pids", MaxComponents)
				continue
			}
			pc.Video = append(pc.Video, Component{
				Pid:        ppe.Pid,
				StreamType: ppe.StreamType,
				Format:     FormatForStreamType(ppe.StreamType),
			})
			if ppe.StreamType == StreamTypeAvc {
				pc.IsH264 = true
			}
		case ppe.StreamType == StreamTypePesPrivate || IsAudioStreamType(ppe.StreamType):
			format := FormatForStreamType(ppe.StreamType)
			if ppe.StreamType == StreamTypePesPrivate {
				// 私有PES只有带AC3/EAC3 descriptor时才是音频
				switch {
				case HasDescriptor(ppe.Descriptors, DescriptorTagAC3):
					format = base.StreamFormatAudioEsAc3
				case HasDescriptor(ppe.Descriptors, DescriptorTagEnhancedAC3):
					format = base.StreamFormatAudioEsEc3
				default:
					continue
				}
			}
			if len(pc.Audio) >= MaxComponents {
				Log.Warnf("pmt contains more than %d audio pids", MaxComponents)
				continue
			}
			c := Component{
				Pid:        ppe.Pid,
				StreamType: ppe.StreamType,
				Format:     format,
			}
			for _, d := range ppe.Descriptors {
				if d.Tag == DescriptorTagISO639LanguageAndAudioType {
					c.Language = d.Iso639.Language
				}
			}
			pc.Audio = append(pc.Audio, c)
		case ppe.StreamType == StreamTypeDsmCc:
			if !pc.HaveDsmCc {
				pc.DsmCc = Component{Pid: ppe.Pid, StreamType: ppe.StreamType, Format: base.StreamFormatUnknown}
				pc.HaveDsmCc = true
			}
		default:
			Log.Debugf("pmt contains unused stream type. type=0x%x, pid=%d", ppe.StreamType, ppe.Pid)
		}
	}

	if len(pc.Video) == 0 {
		for _, a := range pc.Audio {
			if a.Pid == pc.PcrPid {
				pc.IndexAudio = true
				break
			}
		}
	}
	return
}
