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

// ---------------------------------------------------------------------------------------------------
// Program association section
// <iso13818-1.pdf> <2.4.4.3> <page 61/174>
// table_id                 [8b] *
// section_syntax_indicator [1b]
// '0'                      [1b]
// reserved                 [2b]
// section_length           [12b] **
// transport_stream_id      [16b] **
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// -----loop-----
// program_number           [16b] **
// reserved                 [3b]
// program_map_PID          [13b] ** if program_number == 0 then network_PID else then program_map_PID
// --------------
// CRC_32                   [32b] ****
// ---------------------------------------------------------------------------------------------------
type Pat struct {
	Tid             uint8
	Ssi             uint8
	Sl              uint16
	Tsi             uint16
	Vn              uint8
	Cni             uint8
	Sn              uint8
	Lsn             uint8
	ProgramElements []PatProgramElement
	Crc32           uint32
}

type PatProgramElement struct {
	Pn    uint16
	PmPid uint16
}

// ParsePat b指向table_id
func ParsePat(b []byte) (pat Pat, err error) {
	if len(b) < 3 {
		return pat, base.NewErrShortBuffer(3, len(b), "pat")
	}
	br := nazabits.NewBitReader(b)
	pat.Tid, _ = br.ReadBits8(8)
	pat.Ssi, _ = br.ReadBits8(1)
	_, _ = br.ReadBits8(3)
	pat.Sl, _ = br.ReadBits16(12)
	if pat.Tid != TsPsiIdPas {
		return pat, base.ErrPsiSection
	}
	if pat.Sl < 9 || len(b) < 3+int(pat.Sl) {
		return pat, base.NewErrShortBuffer(3+int(pat.Sl), len(b), "pat section")
	}
	pat.Tsi, _ = br.ReadBits16(16)
	_, _ = br.ReadBits8(2)
	pat.Vn, _ = br.ReadBits8(5)
	pat.Cni, _ = br.ReadBits8(1)
	pat.Sn, _ = br.ReadBits8(8)
	pat.Lsn, _ = br.ReadBits8(8)

	length := int(pat.Sl) - 9
	for i := 0; i+4 <= length; i += 4 {
		var ppe PatProgramElement
		ppe.Pn, _ = br.ReadBits16(16)
		_, _ = br.ReadBits8(3)
		ppe.PmPid, _ = br.ReadBits16(13)
		pat.ProgramElements = append(pat.ProgramElements, ppe)
	}
	end := 3 + int(pat.Sl)
	pat.Crc32 = bele.BeUint32(b[end-4:])
	if crc := CalcCrc32(0xffffffff, b[:end-4]); crc != pat.Crc32 {
		return pat, base.NewErrPsiCrc(pat.Crc32, crc)
	}
	return
}

// FirstProgram 第一个program_number不为0的节目，0为network PID占位
func (pat *Pat) FirstProgram() (PatProgramElement, bool) {
	for _, ppe := range pat.ProgramElements {
		if ppe.Pn != 0 {
			return ppe, true
		}
	}
	return PatProgramElement{}, false
}

func (pat *Pat) SearchPid(pid uint16) bool {
	for _, ppe := range pat.ProgramElements {
		if ppe.Pn != 0 && pid == ppe.PmPid {
			return true
		}
	}
	return false
}
