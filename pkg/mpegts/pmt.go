// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
)

// Pmt
//
// ----------------------------------------
// Program Map Table
// <iso13818-1.pdf> <2.4.4.8> <page 64/174>
// table_id                 [8b]  *
// section_syntax_indicator [1b]
// 0                        [1b]
// reserved                 [2b]
// section_length           [12b] **
// program_number           [16b] **
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// reserved                 [3b]
// PCR_PID                  [13b] **
// reserved                 [4b]
// program_info_length      [12b] **
// -----loop-----
// stream_type              [8b]  *
// reserved                 [3b]
// elementary_PID           [13b] **
// reserved                 [4b]
// ES_info_length_length    [12b] **
// --------------
// CRC32                    [32b] ****
// ----------------------------------------
//
type Pmt struct {
	Tid                uint8
	Ssi                uint8
	Sl                 uint16
	Pn                 uint16
	Vn                 uint8
	Cni                uint8
	Sn                 uint8
	Lsn                uint8
	PcrPid             uint16
	Pil                uint16
	ProgramDescriptors []Descriptor
	ProgramElements    []PmtProgramElement
	Crc32              uint32
}

type PmtProgramElement struct {
	StreamType  uint8
	Pid         uint16
	Length      uint16
	Descriptors []Descriptor
}

// ParsePmt b指向table_id，section可能是多个TS packet拼接后的结果
func ParsePmt(b []byte) (pmt Pmt, err error) {
	if len(b) < 3 {
		return pmt, base.NewErrShortBuffer(3, len(b), "pmt")
	}
	br := nazabits.NewBitReader(b)
	pmt.Tid, _ = br.ReadBits8(8)
	pmt.Ssi, _ = br.ReadBits8(1)
	_, _ = br.ReadBits8(3)
	pmt.Sl, _ = br.ReadBits16(12)
	if pmt.Tid != TsPsiIdPms {
		return pmt, base.ErrPsiSection
	}
	end := 3 + int(pmt.Sl)
	if pmt.Sl < 13 || len(b) < end {
		return pmt, base.NewErrShortBuffer(end, len(b), "pmt section")
	}
	pmt.Pn, _ = br.ReadBits16(16)
	_, _ = br.ReadBits8(2)
	pmt.Vn, _ = br.ReadBits8(5)
	pmt.Cni, _ = br.ReadBits8(1)
	pmt.Sn, _ = br.ReadBits8(8)
	pmt.Lsn, _ = br.ReadBits8(8)
	_, _ = br.ReadBits8(3)
	pmt.PcrPid, _ = br.ReadBits16(13)
	_, _ = br.ReadBits8(4)
	pmt.Pil, _ = br.ReadBits16(12)

	pos := 12
	loopEnd := end - 4
	if pos+int(pmt.Pil) > loopEnd {
		return pmt, base.ErrPsiSection
	}
	pmt.ProgramDescriptors = ParseDescriptors(b[pos : pos+int(pmt.Pil)])
	pos += int(pmt.Pil)

	for pos+5 <= loopEnd {
		var ppe PmtProgramElement
		ppe.StreamType = b[pos]
		ppe.Pid = bele.BeUint16(b[pos+1:]) & 0x1fff
		ppe.Length = bele.BeUint16(b[pos+3:]) & 0x0fff
		pos += 5
		if pos+int(ppe.Length) > loopEnd {
			Log.Warnf("pmt es info length out of range. pid=%d, length=%d", ppe.Pid, ppe.Length)
			return pmt, base.ErrPsiSection
		}
		ppe.Descriptors = ParseDescriptors(b[pos : pos+int(ppe.Length)])
		pos += int(ppe.Length)
		pmt.ProgramElements = append(pmt.ProgramElements, ppe)
	}

	pmt.Crc32 = bele.BeUint32(b[end-4:])
	if crc := CalcCrc32(0xffffffff, b[:end-4]); crc != pmt.Crc32 {
		return pmt, base.NewErrPsiCrc(pmt.Crc32, crc)
	}
	return
}

func (pmt *Pmt) SearchPid(pid uint16) *PmtProgramElement {
	for i := range pmt.ProgramElements {
		if pmt.ProgramElements[i].Pid == pid {
			return &pmt.ProgramElements[i]
		}
	}
	return nil
}

// ParseDescriptors 解析descriptor循环，长度越界的尾部descriptor被丢弃
func ParseDescriptors(b []byte) (ds []Descriptor) {
	for i := 0; i+2 <= len(b); {
		d := Descriptor{
			Tag:    b[i],
			Length: b[i+1],
		}
		i += 2
		if i+int(d.Length) > len(b) {
			break
		}
		d.Data = b[i : i+int(d.Length)]
		if d.Tag == DescriptorTagISO639LanguageAndAudioType && d.Length >= 3 {
			d.Iso639.Language = string(d.Data[:3])
			if d.Length >= 4 {
				d.Iso639.AudioType = d.Data[3]
			}
		}
		ds = append(ds, d)
		i += int(d.Length)
	}
	return
}

func HasDescriptor(ds []Descriptor, tag uint8) bool {
	for _, d := range ds {
		if d.Tag == tag {
			return true
		}
	}
	return false
}
