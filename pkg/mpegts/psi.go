// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
)

// PsiId
const (
	TsPsiIdPas            = 0x00 // program_association_section
	TsPsiIdCas            = 0x01 // conditional_access_section (CA_section)
	TsPsiIdPms            = 0x02 // TS_program_map_section
	TsPsiIdDs             = 0x03 // TS_description_section
	TsPsiIdSds            = 0x04 // ISO_IEC_14496_scene_description_section
	TsPsiIdOds            = 0x05 // ISO_IEC_14496_object_descriptor_section
	TsPsiIdIso138181Start = 0x06 // ITU-T Rec. H.222.0 | ISO/IEC 13818-1 reserved
	TsPsiIdIso138181End   = 0x37
	TsPsiIdIso138186Start = 0x38 // Defined in ISO/IEC 13818-6
	TsPsiIdIso138186End   = 0x3F
	TsPsiIdUserStart      = 0x40 // User private
	TsPsiIdUserEnd        = 0xFE
	TsPsiIdForbidden      = 0xFF // forbidden
)

const (
	DescriptorTagAC3                        = 0x6a
	DescriptorTagAVCVideo                   = 0x28
	DescriptorTagDataStreamAlignment        = 0x6
	DescriptorTagEnhancedAC3                = 0x7a
	DescriptorTagExtension                  = 0x7f
	DescriptorTagISO639LanguageAndAudioType = 0xa
	DescriptorTagMaximumBitrate             = 0xe
	DescriptorTagRegistration               = 0x5
	DescriptorTagStreamIdentifier           = 0x52
)

type Descriptor struct {
	Tag    uint8
	Length uint8
	Iso639 DescriptorIso639 // Tag为ISO639时有效
	Data   []byte           // 其他Tag时为原始内容
}

type DescriptorIso639 struct {
	Language  string
	AudioType uint8
}

// NewIso639Descriptor 语言为空时返回false，调用方不需要写这个descriptor
func NewIso639Descriptor(language string) (Descriptor, bool) {
	if language == "" {
		return Descriptor{}, false
	}
	return Descriptor{
		Tag:    DescriptorTagISO639LanguageAndAudioType,
		Iso639: DescriptorIso639{Language: language},
	}, true
}

type PsiSection struct {
	pointerField uint8
	sectionData  PsiSectionData
}

type PsiSectionData struct {
	header  PsiTableHeader
	section PsiTableSyntaxSection
	patData PatSpecificData
	pmtData PmtSpecificData
}

type PsiTableHeader struct {
	tableId                uint8
	sectionSyntaxIndicator uint8
	sectionLength          uint16
}

type PsiTableSyntaxSection struct {
	tableIdExtension     uint16
	versionNumber        uint8
	currentNextIndicator uint8
	sectionNumber        uint8
	lastSectionNumber    uint8
}

type PatSpecificData struct {
	pes []PatProgramElement
}

type PmtSpecificData struct {
	pcrPid            uint16
	programInfoLength uint16
	pes               []PmtProgramElement
}

// NewPatSection 构造只有一个section的PAT
func NewPatSection(tsi uint16, version uint8, programs []PatProgramElement) *PsiSection {
	psi := &PsiSection{}
	psi.sectionData.header.tableId = TsPsiIdPas
	psi.sectionData.header.sectionSyntaxIndicator = 1
	psi.sectionData.section.tableIdExtension = tsi
	psi.sectionData.section.versionNumber = version & 0x1f
	psi.sectionData.section.currentNextIndicator = 1
	psi.sectionData.patData.pes = programs
	return psi
}

// NewPmtSection 构造只有一个section的PMT
func NewPmtSection(pn uint16, version uint8, pcrPid uint16, elements []PmtProgramElement) *PsiSection {
	psi := &PsiSection{}
	psi.sectionData.header.tableId = TsPsiIdPms
	psi.sectionData.header.sectionSyntaxIndicator = 1
	psi.sectionData.section.tableIdExtension = pn
	psi.sectionData.section.versionNumber = version & 0x1f
	psi.sectionData.section.currentNextIndicator = 1
	psi.sectionData.pmtData.pcrPid = pcrPid
	psi.sectionData.pmtData.pes = elements
	return psi
}

// Pack 输出 pointer_field + section，section末尾为big endian的CRC32
func (psi *PsiSection) Pack() (int, []byte) {
	sl := psi.calcPsiSectionLength()
	psiSection := make([]byte, 1+3+int(sl))
	bw := nazabits.NewBitWriter(psiSection)

	bw.WriteBits8(8, psi.pointerField)
	psi.writePsiTableHeader(&bw)
	psi.writePsiTableSyntaxSection(&bw)

	crc := CalcCrc32(0xffffffff, psiSection[1:len(psiSection)-4])
	bele.BePutUint32(psiSection[len(psiSection)-4:], crc)

	return len(psiSection), psiSection
}

func (psi *PsiSection) writePsiTableHeader(bw *nazabits.BitWriter) {
	bw.WriteBits8(8, psi.sectionData.header.tableId)
	bw.WriteBit(psi.sectionData.header.sectionSyntaxIndicator)
	bw.WriteBit(0)
	bw.WriteBits8(2, 0xff)

	psi.sectionData.header.sectionLength = psi.calcPsiSectionLength()
	bw.WriteBits16(12, psi.sectionData.header.sectionLength)
}

func (psi *PsiSection) writePsiTableSyntaxSection(bw *nazabits.BitWriter) {
	bw.WriteBits16(16, psi.sectionData.section.tableIdExtension)
	bw.WriteBits8(2, 0xff)
	bw.WriteBits8(5, psi.sectionData.section.versionNumber)
	bw.WriteBit(psi.sectionData.section.currentNextIndicator)
	bw.WriteBits8(8, psi.sectionData.section.sectionNumber)
	bw.WriteBits8(8, psi.sectionData.section.lastSectionNumber)

	switch psi.sectionData.header.tableId {
	case TsPsiIdPas:
		psi.writePatSection(bw)
	case TsPsiIdPms:
		psi.writePmtSection(bw)
	}
}

func (psi *PsiSection) calcPsiSectionLength() (length uint16) {
	// Table ID extension(16 bits)+Reserved bits(2 bits)+Version number(5 bits)+Current next Indicator(1 bit)+Section number(8 bits)+Last section number(8 bits)
	length += 5

	switch psi.sectionData.header.tableId {
	case TsPsiIdPas:
		length += uint16(4 * len(psi.sectionData.patData.pes))
	case TsPsiIdPms:
		length += psi.calcPmtSectionLength()
	}

	length += 4 //crc32
	return
}

func (psi *PsiSection) calcPmtSectionLength() (length uint16) {
	// Reserved bits(3 bits)+PCR PID(13 bits)+Reserved bits(4 bits)+Program info length(12 bits)
	length = 4

	for _, pe := range psi.sectionData.pmtData.pes {
		length += 5
		length += calcDescriptorsLength(pe.Descriptors)
	}
	return
}

func calcDescriptorsLength(ds []Descriptor) uint16 {
	length := uint16(0)
	for _, d := range ds {
		length += 2 // tag and length
		length += uint16(calcDescriptorLength(d))
	}
	return length
}

func calcDescriptorLength(d Descriptor) uint8 {
	switch d.Tag {
	case DescriptorTagISO639LanguageAndAudioType:
		// 语言 + audio_type
		return uint8(len(d.Iso639.Language) + 1)
	}
	return uint8(len(d.Data))
}

func (psi *PsiSection) writePatSection(bw *nazabits.BitWriter) {
	for _, pe := range psi.sectionData.patData.pes {
		bw.WriteBits16(16, pe.Pn)
		bw.WriteBits8(3, 0xff)
		bw.WriteBits16(13, pe.PmPid)
	}
}

func (psi *PsiSection) writePmtSection(bw *nazabits.BitWriter) {
	bw.WriteBits8(3, 0xff)
	bw.WriteBits16(13, psi.sectionData.pmtData.pcrPid)
	bw.WriteBits8(4, 0xff)
	bw.WriteBits16(12, psi.sectionData.pmtData.programInfoLength)

	for _, pe := range psi.sectionData.pmtData.pes {
		bw.WriteBits8(8, pe.StreamType)
		bw.WriteBits8(3, 0xff)
		bw.WriteBits16(13, pe.Pid)
		writeDescriptorsWithLength(bw, pe.Descriptors)
	}
}

func writeDescriptorsWithLength(bw *nazabits.BitWriter, dps []Descriptor) {
	bw.WriteBits8(4, 0xff)
	bw.WriteBits16(12, calcDescriptorsLength(dps))

	for _, dp := range dps {
		writeDescriptor(bw, dp)
	}
}

func writeDescriptor(bw *nazabits.BitWriter, d Descriptor) {
	bw.WriteBits8(8, d.Tag)
	bw.WriteBits8(8, calcDescriptorLength(d))

	switch d.Tag {
	case DescriptorTagISO639LanguageAndAudioType:
		for i := 0; i < len(d.Iso639.Language); i++ {
			bw.WriteBits8(8, d.Iso639.Language[i])
		}
		bw.WriteBits8(8, d.Iso639.AudioType)
	default:
		for _, b := range d.Data {
			bw.WriteBits8(8, b)
		}
	}
}
