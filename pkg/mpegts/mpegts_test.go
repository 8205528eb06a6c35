// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/asticode/go-astits"

	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/lalts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/assert"
)

func TestUint33(t *testing.T) {
	m := mpegts.Uint33Max
	assert.Equal(t, uint64(1<<33-1), m.Value())
	assert.Equal(t, uint64(0), m.Add(1).Value())
	assert.Equal(t, m.Value(), mpegts.NewUint33(0).Sub(1).Value())
	assert.Equal(t, uint64(5), mpegts.NewUint33(1<<33+5).Value())

	// 回绕附近: a在2^33下方一点，b在0上方一点，a早于b
	a := mpegts.NewUint33(1<<33 - 100)
	b := mpegts.NewUint33(100)
	assert.Equal(t, true, a.Before(b))
	assert.Equal(t, false, a.After(b))
	assert.Equal(t, true, b.After(a))
	assert.Equal(t, int64(200), b.Delta(a))
	assert.Equal(t, int64(-200), a.Delta(b))
	assert.Equal(t, false, a.Before(a))

	// 半个周期的边界
	assert.Equal(t, uint64(1<<32-1), mpegts.Uint33HalfMax.Value())
	zero := mpegts.NewUint33(0)
	assert.Equal(t, true, zero.Before(mpegts.NewUint33(1<<32-1)))
	assert.Equal(t, false, zero.Before(mpegts.NewUint33(1<<32)))
	assert.Equal(t, false, zero.After(mpegts.NewUint33(1<<32)))

	// 普通大小比较
	assert.Equal(t, true, mpegts.NewUint33(90000).After(mpegts.NewUint33(45000)))

	// (a - b) + b == a mod 2^33
	values := []uint64{0, 1, 2, 45000, 90000, 1 << 32, 1<<32 + 1, 1<<33 - 2, 1<<33 - 1, 0x123456789}
	for _, x := range values {
		for _, y := range values {
			ux := mpegts.NewUint33(x)
			uy := mpegts.NewUint33(y)
			assert.Equal(t, x, ux.Sub(uy).Add(uy).Value())
		}
	}
}

func TestCalcCrc32(t *testing.T) {
	assert.Equal(t, uint32(0x0376e6e7), mpegts.CalcCrc32(0xffffffff, []byte("123456789")))

	// 带上CRC本身再算一遍结果为0
	pat := mpegts.NewPatSection(1, 1, []mpegts.PatProgramElement{{Pn: 1, PmPid: 0x1000}})
	_, data := pat.Pack()
	assert.Equal(t, uint32(0), mpegts.CalcCrc32(0xffffffff, data[1:]))
}

func TestTimestamp(t *testing.T) {
	b := make([]byte, 5)
	for _, v := range []uint64{0, 1, 90000, 1 << 32, 1<<33 - 1} {
		mpegts.WriteTimestamp(b, mpegts.PtsDtsPrefixPts, mpegts.NewUint33(v))
		ts, prefix, err := mpegts.ReadTimestamp(b)
		assert.Equal(t, nil, err)
		assert.Equal(t, uint8(mpegts.PtsDtsPrefixPts), prefix)
		assert.Equal(t, v, ts.Value())
	}

	// marker bit被破坏
	mpegts.WriteTimestamp(b, mpegts.PtsDtsPrefixPtsOnly, mpegts.NewUint33(90000))
	b[2] &= 0xfe
	_, _, err := mpegts.ReadTimestamp(b)
	assert.Equal(t, true, errors.Is(err, base.ErrPtsMarker))

	_, _, err = mpegts.ReadTimestamp(b[:3])
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))
}

func TestPcr(t *testing.T) {
	b := make([]byte, 6)
	for _, v := range []uint64{0, 1, 27000, 1<<33 - 1} {
		mpegts.WritePcr(b, mpegts.NewUint33(v), true)
		assert.Equal(t, v, mpegts.ReadPcr(b).Value())
		assert.Equal(t, uint8(0x7e), b[4]&0x7e)
		assert.Equal(t, uint8(0), b[5])
	}

	// 不清extension时保留原来的extension
	b[4] |= 0x01
	b[5] = 0x23
	mpegts.WritePcr(b, mpegts.NewUint33(12345), false)
	assert.Equal(t, uint64(12345), mpegts.ReadPcr(b).Value())
	assert.Equal(t, uint8(0x01), b[4]&0x01)
	assert.Equal(t, uint8(0x23), b[5])
}

func newScenarioInfo() mpegts.PatPmtInfo {
	return mpegts.PatPmtInfo{
		ProgramNumber: 1,
		PmtPid:        0x20,
		PcrPid:        0x100,
		Video: []mpegts.Component{
			{Pid: 0x100, StreamType: mpegts.StreamTypeAvc},
		},
		Audio: []mpegts.Component{
			{Pid: 0x101, StreamType: mpegts.StreamTypeAacAdts, Language: "eng"},
		},
	}
}

func TestPatPmt(t *testing.T) {
	data := mpegts.PackPatPmt(newScenarioInfo())
	assert.Equal(t, 2*mpegts.PacketSize, len(data))

	h, err := mpegts.ParseTsPacketHeader(data)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(mpegts.PidPat), h.Pid)
	assert.Equal(t, true, h.IsPayloadUnitStart())
	assert.Equal(t, uint8(0), data[4]) // pointer_field

	pat, err := mpegts.ParsePat(data[5:])
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(mpegts.PatVersion), pat.Vn)
	ppe, ok := pat.FirstProgram()
	assert.Equal(t, true, ok)
	assert.Equal(t, uint16(1), ppe.Pn)
	assert.Equal(t, uint16(0x20), ppe.PmPid)

	assert.Equal(t, uint16(0x20), mpegts.Pid(data[mpegts.PacketSize:]))
	pmt, err := mpegts.ParsePmt(data[mpegts.PacketSize+5:])
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(0x100), pmt.PcrPid)

	pc := mpegts.ClassifyPmt(&pmt)
	assert.Equal(t, 1, len(pc.Video))
	assert.Equal(t, 1, len(pc.Audio))
	assert.Equal(t, mpegts.Component{Pid: 0x100, StreamType: 0x1b, Format: base.StreamFormatVideoEsH264}, pc.Video[0])
	assert.Equal(t, mpegts.Component{Pid: 0x101, StreamType: 0x0f, Language: "eng", Format: base.StreamFormatAudioEsAac}, pc.Audio[0])
	assert.Equal(t, true, pc.IsH264)
	assert.Equal(t, false, pc.IndexAudio)

	// 其他实现能解出同样的内容
	dmx := astits.NewDemuxer(context.Background(), bytes.NewReader(data))
	var gotPat, gotPmt bool
	for {
		d, err := dmx.NextData()
		if err != nil {
			break
		}
		if d.PAT != nil {
			gotPat = true
			assert.Equal(t, 1, len(d.PAT.Programs))
			assert.Equal(t, uint16(1), d.PAT.Programs[0].ProgramNumber)
			assert.Equal(t, uint16(0x20), d.PAT.Programs[0].ProgramMapID)
		}
		if d.PMT != nil {
			gotPmt = true
			assert.Equal(t, uint16(0x100), d.PMT.PCRPID)
			assert.Equal(t, 2, len(d.PMT.ElementaryStreams))
			assert.Equal(t, uint16(0x100), d.PMT.ElementaryStreams[0].ElementaryPID)
			assert.Equal(t, astits.StreamTypeH264Video, d.PMT.ElementaryStreams[0].StreamType)
			es := d.PMT.ElementaryStreams[1]
			assert.Equal(t, uint16(0x101), es.ElementaryPID)
			assert.Equal(t, astits.StreamTypeAACAudio, es.StreamType)
			assert.Equal(t, 1, len(es.ElementaryStreamDescriptors))
			assert.Equal(t, "eng", string(es.ElementaryStreamDescriptors[0].ISO639LanguageAndAudioType.Language))
		}
	}
	assert.Equal(t, true, gotPat)
	assert.Equal(t, true, gotPmt)
}

func TestPatPmtPrivateAudio(t *testing.T) {
	info := newScenarioInfo()
	info.Audio = []mpegts.Component{
		{Pid: 0x101, StreamType: mpegts.StreamTypePesPrivate, Language: "eng", Format: base.StreamFormatAudioEsAc3},
		{Pid: 0x102, StreamType: mpegts.StreamTypePesPrivate, Language: "fra", Format: base.StreamFormatAudioEsEc3},
	}
	data := mpegts.PackPatPmt(info)
	pmt, err := mpegts.ParsePmt(data[mpegts.PacketSize+5:])
	assert.Equal(t, nil, err)
	pc := mpegts.ClassifyPmt(&pmt)
	assert.Equal(t, 1, len(pc.Video))
	assert.Equal(t, info.Audio, pc.Audio)

	dmx := astits.NewDemuxer(context.Background(), bytes.NewReader(data))
	var gotPmt bool
	for {
		d, err := dmx.NextData()
		if err != nil {
			break
		}
		if d.PMT != nil {
			gotPmt = true
			assert.Equal(t, 3, len(d.PMT.ElementaryStreams))
			for i, tag := range []uint8{mpegts.DescriptorTagAC3, mpegts.DescriptorTagEnhancedAC3} {
				es := d.PMT.ElementaryStreams[i+1]
				assert.Equal(t, 2, len(es.ElementaryStreamDescriptors))
				assert.Equal(t, tag, es.ElementaryStreamDescriptors[1].Tag)
			}
		}
	}
	assert.Equal(t, true, gotPmt)
}

func TestParsePsiCorrupt(t *testing.T) {
	data := mpegts.PackPatPmt(newScenarioInfo())
	pmtSection := append([]byte(nil), data[mpegts.PacketSize+5:]...)
	pmtSection[9] ^= 0xff // PCR_PID
	_, err := mpegts.ParsePmt(pmtSection)
	assert.Equal(t, true, errors.Is(err, base.ErrPsiCrc))

	_, err = mpegts.ParsePat(data[mpegts.PacketSize+5:])
	assert.Equal(t, true, errors.Is(err, base.ErrPsiSection))
}

func TestPrivateAudio(t *testing.T) {
	pmtSection := mpegts.NewPmtSection(1, 0, 0x100, []mpegts.PmtProgramElement{
		{StreamType: mpegts.StreamTypeMpeg2Video, Pid: 0x100},
		{StreamType: mpegts.StreamTypePesPrivate, Pid: 0x102, Descriptors: []mpegts.Descriptor{
			{Tag: mpegts.DescriptorTagEnhancedAC3, Data: []byte{0x00}},
			{Tag: mpegts.DescriptorTagISO639LanguageAndAudioType, Iso639: mpegts.DescriptorIso639{Language: "fra"}},
		}},
		{StreamType: mpegts.StreamTypePesPrivate, Pid: 0x103}, // 没有AC3 descriptor，不是音频
		{StreamType: mpegts.StreamTypeDsmCc, Pid: 0x104},
	})
	_, data := pmtSection.Pack()
	pmt, err := mpegts.ParsePmt(data[1:])
	assert.Equal(t, nil, err)
	pc := mpegts.ClassifyPmt(&pmt)
	assert.Equal(t, 1, len(pc.Video))
	assert.Equal(t, false, pc.IsH264)
	assert.Equal(t, 1, len(pc.Audio))
	assert.Equal(t, mpegts.Component{Pid: 0x102, StreamType: 0x06, Language: "fra", Format: base.StreamFormatAudioEsEc3}, pc.Audio[0])
	assert.Equal(t, true, pc.HaveDsmCc)
	assert.Equal(t, uint16(0x104), pc.DsmCc.Pid)
}

func newLargePmt(t *testing.T) []byte {
	var elements []mpegts.PmtProgramElement
	for i := 0; i < 5; i++ {
		elements = append(elements, mpegts.PmtProgramElement{
			StreamType: mpegts.StreamTypeAacAdts,
			Pid:        uint16(0x101 + i),
			Descriptors: []mpegts.Descriptor{
				{Tag: mpegts.DescriptorTagRegistration, Data: bytes.Repeat([]byte{byte(i)}, 40)},
			},
		})
	}
	_, data := mpegts.NewPmtSection(1, 3, 0x101, elements).Pack()
	packets := mpegts.PackSection(nil, 0x20, data, 0)
	assert.Equal(t, 2*mpegts.PacketSize, len(packets))
	return packets
}

func TestSectionCollector(t *testing.T) {
	packets := newLargePmt(t)
	first := packets[:mpegts.PacketSize]
	second := packets[mpegts.PacketSize:]
	assert.Equal(t, false, mpegts.IsPayloadUnitStart(second))

	c := mpegts.NewSectionCollector(mpegts.MaxPmtSectionSize)
	section, err := c.Start(first[5:], 7)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(section))
	assert.Equal(t, true, c.Active())

	section, err = c.Continue(second[4:], 8)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, c.Active())
	pmt, err := mpegts.ParsePmt(section)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(3), pmt.Vn)
	assert.Equal(t, 5, len(pmt.ProgramElements))
	assert.Equal(t, 40, len(pmt.ProgramElements[4].Descriptors[0].Data))

	// 所有packet使用同一个cc
	_, _ = c.Start(first[5:], 7)
	section, err = c.Continue(second[4:], 7)
	assert.Equal(t, nil, err)
	_, err = mpegts.ParsePmt(section)
	assert.Equal(t, nil, err)

	// cc不连续，丢弃整个section
	_, _ = c.Start(first[5:], 7)
	section, err = c.Continue(second[4:], 12)
	assert.Equal(t, true, errors.Is(err, base.ErrPsiSection))
	assert.Equal(t, 0, len(section))
	assert.Equal(t, false, c.Active())

	// 单个packet就能装下
	single := mpegts.PackPatPmt(newScenarioInfo())
	section, err = c.Start(single[mpegts.PacketSize+5:], 0)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, c.Active())
	_, err = mpegts.ParsePmt(section)
	assert.Equal(t, nil, err)
}

func TestSectionCollectorOversized(t *testing.T) {
	packets := newLargePmt(t)
	c := mpegts.NewSectionCollector(100)
	_, err := c.Start(packets[5:mpegts.PacketSize], 0)
	assert.Equal(t, true, errors.Is(err, base.ErrPsiSection))
	assert.Equal(t, false, c.Active())
}

func TestFramePack(t *testing.T) {
	raw := make([]byte, 300)
	for i := range raw {
		raw[i] = byte(i)
	}
	frame := mpegts.Frame{
		Pts:     mpegts.NewUint33(93000),
		Dts:     mpegts.NewUint33(90000),
		Pid:     0x100,
		Sid:     mpegts.StreamIdVideo,
		Key:     true,
		WithPcr: true,
		Cc:      15,
		Raw:     raw,
	}
	out := frame.Pack()
	assert.Equal(t, 2*mpegts.PacketSize, len(out))
	assert.Equal(t, uint8(1), frame.Cc)
	assert.Equal(t, true, mpegts.HasPcr(out))

	af, err := mpegts.ParseTsPacketAdaptation(out[4:])
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(1), af.RandomAccess)
	assert.Equal(t, uint64(90000), af.Pcr.Value())

	offset := mpegts.PayloadOffset(out)
	pes, length, err := mpegts.ParsePes(out[offset:])
	assert.Equal(t, nil, err)
	assert.Equal(t, 19, length)
	assert.Equal(t, true, pes.HasPts)
	assert.Equal(t, true, pes.HasDts)
	assert.Equal(t, uint64(93000), pes.Pts.Value())
	assert.Equal(t, uint64(90000), pes.Dts.Value())

	// 第二个packet用stuffing补齐
	second := out[mpegts.PacketSize:]
	assert.Equal(t, false, mpegts.IsPayloadUnitStart(second))
	assert.Equal(t, raw[len(raw)-(mpegts.PacketSize-mpegts.PayloadOffset(second)):], second[mpegts.PayloadOffset(second):])
}

func TestPayloadView(t *testing.T) {
	raw := make([]byte, 300)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	frame := mpegts.Frame{Pts: 90000, Dts: 90000, Pid: 0x100, Sid: mpegts.StreamIdVideo, Raw: raw}
	packets := frame.Pack()

	other := mpegts.Frame{Pts: 90000, Dts: 90000, Pid: 0x101, Sid: mpegts.StreamIdAudio, Raw: []byte{1, 2, 3}}
	var segment []byte
	segment = append(segment, packets[:mpegts.PacketSize]...)
	segment = append(segment, other.Pack()...)
	segment = append(segment, packets[mpegts.PacketSize:]...)

	carry := []byte{0xaa, 0xbb}
	v := mpegts.NewPayloadView(segment, 0, 0x100, carry)
	assert.Equal(t, len(carry)+len(raw), v.Len())
	assert.Equal(t, 2, v.CarryLen())
	assert.Equal(t, []int{2}, v.PesStarts())
	assert.Equal(t, byte(0xaa), v.ByteAt(0))
	for i := range raw {
		assert.Equal(t, raw[i], v.ByteAt(2+i))
	}

	// carry只读
	v.SetByteAt(0, 0x11)
	assert.Equal(t, byte(0xaa), v.ByteAt(0))
	assert.Equal(t, []byte{0xaa, 0xbb}, carry)

	// 写回segment中对应的位置
	v.SetByteAt(v.Len()-1, 0x55)
	assert.Equal(t, byte(0x55), segment[len(segment)-1])
	v.SetByteAt(2, 0x66)
	assert.Equal(t, byte(0x66), v.ByteAt(2))

	assert.Equal(t, []byte{raw[297], raw[298], 0x55}, v.Tail(3))

	// 带tts前缀
	var ttsSegment []byte
	for i := 0; i < len(segment); i += mpegts.PacketSize {
		ttsSegment = append(ttsSegment, 0, 0, 0, 0)
		ttsSegment = append(ttsSegment, segment[i:i+mpegts.PacketSize]...)
	}
	tv := mpegts.NewPayloadView(ttsSegment, 4, 0x100, nil)
	assert.Equal(t, len(raw), tv.Len())
	assert.Equal(t, byte(0x66), tv.ByteAt(0))
	assert.Equal(t, byte(0x55), tv.ByteAt(tv.Len()-1))
}
