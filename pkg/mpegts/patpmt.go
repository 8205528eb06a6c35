// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "github.com/q191201771/lalts/pkg/base"

// PatPmtInfo 生成PAT+PMT所需的信息
type PatPmtInfo struct {
	ProgramNumber uint16
	PmtPid        uint16
	PcrPid        uint16
	PmtVersion    uint8
	Video         []Component
	Audio         []Component // trick模式下为空
	TtsSize       int
}

// PatVersion 生成的PAT固定使用的版本号
const PatVersion = 1

// PackPatPmt 生成一个PAT packet，后面跟着一个或多个PMT packet
//
// 所有packet的continuity_counter为0，由调用方在插入时重写
func PackPatPmt(info PatPmtInfo) []byte {
	pn := info.ProgramNumber
	if pn == 0 {
		pn = 1
	}

	pat := NewPatSection(1, PatVersion, []PatProgramElement{{Pn: pn, PmPid: info.PmtPid}})
	_, patData := pat.Pack()

	var elements []PmtProgramElement
	for _, v := range info.Video {
		elements = append(elements, PmtProgramElement{StreamType: v.StreamType, Pid: v.Pid})
	}
	for _, a := range info.Audio {
		ppe := PmtProgramElement{StreamType: a.StreamType, Pid: a.Pid}
		if d, ok := NewIso639Descriptor(a.Language); ok {
			ppe.Descriptors = append(ppe.Descriptors, d)
		}
		if d, ok := newPrivateAudioDescriptor(a); ok {
			ppe.Descriptors = append(ppe.Descriptors, d)
		}
		elements = append(elements, ppe)
	}
	pmt := NewPmtSection(pn, info.PmtVersion, info.PcrPid, elements)
	_, pmtData := pmt.Pack()

	out := PackSection(nil, PidPat, patData, info.TtsSize)
	return PackSection(out, info.PmtPid, pmtData, info.TtsSize)
}

// newPrivateAudioDescriptor 私有PES承载的音频需要AC3/EAC3 descriptor，否则解析方不会把它当作音频
//
// descriptor内容只有一个全0的flag字节，不携带可选字段
func newPrivateAudioDescriptor(c Component) (Descriptor, bool) {
	if c.StreamType != StreamTypePesPrivate {
		return Descriptor{}, false
	}
	tag := uint8(DescriptorTagAC3)
	if c.Format == base.StreamFormatAudioEsEc3 || c.Format == base.StreamFormatAudioEsAtmos {
		tag = DescriptorTagEnhancedAC3
	}
	return Descriptor{Tag: tag, Length: 1, Data: []byte{0x00}}, true
}

// PackSection 把 pointer_field+section 切分成TS packet追加到out后面
//
// 首个packet带payload_unit_start和transport_priority，后续packet不带
func PackSection(out []byte, pid uint16, data []byte, ttsSize int) []byte {
	first := true
	for len(data) > 0 || first {
		packet := make([]byte, ttsSize+PacketSize)
		p := packet[ttsSize:]
		p[0] = syncByte
		p[1] = uint8(pid>>8) & 0x1f
		if first {
			p[1] |= 0x60
		}
		p[2] = uint8(pid)
		p[3] = 0x10
		n := copy(p[PacketHeaderSize:], data)
		for i := PacketHeaderSize + n; i < PacketSize; i++ {
			p[i] = 0xff
		}
		data = data[n:]
		first = false
		out = append(out, packet...)
	}
	return out
}
