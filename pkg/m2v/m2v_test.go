// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package m2v

import (
	"testing"

	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/lalts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/assert"
)

func TestParseSequenceHeader(t *testing.T) {
	// 720x480
	b := []byte{0x00, 0x00, 0x01, 0xb3, 0x2d, 0x01, 0xe0, 0x34}
	sh, err := ParseSequenceHeader(base.Bytes(b), 0)
	assert.Equal(t, nil, err)
	assert.Equal(t, SequenceHeader{Width: 720, Height: 480}, sh)

	_, err = ParseSequenceHeader(base.Bytes(b[:6]), 0)
	assert.IsNotNil(t, err)

	b[3] = 0xb5
	_, err = ParseSequenceHeader(base.Bytes(b), 0)
	assert.IsNotNil(t, err)
}

func TestMpeg2Scanner(t *testing.T) {
	s := NewMpeg2Scanner()
	w, h := s.FrameSize()
	assert.Equal(t, -1, w)
	assert.Equal(t, -1, h)
	assert.Equal(t, ScanRemainderSize, s.RemainderLimit())
	assert.Equal(t, false, s.NeedInterlaceProbe())

	gop := base.Bytes([]byte{0x00, 0x00, 0x01, 0xb8, 0x00, 0x08, 0x00, 0x00})
	assert.Equal(t, true, s.ProcessStartCode(gop, 0))

	seq := base.Bytes([]byte{0x00, 0x00, 0x01, 0xb3, 0x78, 0x04, 0x38, 0x34})
	assert.Equal(t, false, s.ProcessStartCode(seq, 0))
	w, h = s.FrameSize()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	slice := base.Bytes([]byte{0x00, 0x00, 0x01, 0x01, 0x0a, 0x70})
	assert.Equal(t, false, s.ProcessStartCode(slice, 0))
	picture := base.Bytes([]byte{0x00, 0x00, 0x01, 0x00, 0x01, 0xd7})
	assert.Equal(t, true, s.ProcessStartCode(picture, 0))
}

func TestBuildSkipSlice(t *testing.T) {
	golden := []struct {
		width    int
		expected []byte
	}{
		{32, []byte{0x00, 0x00, 0x01, 0x01, 0x0a, 0x79, 0xc0}},
		{352, []byte{0x00, 0x00, 0x01, 0x01, 0x0a, 0x70, 0x48, 0xe0}},
		{720, []byte{0x00, 0x00, 0x01, 0x01, 0x0a, 0x70, 0x10, 0x14, 0x70}},
		{1920, []byte{0x00, 0x00, 0x01, 0x01, 0x0a, 0x70, 0x10, 0x02, 0x00, 0x40, 0x26, 0x70}},
	}
	for _, item := range golden {
		mbWidth := (item.width + MacroblockSize - 1) / MacroblockSize
		assert.Equal(t, item.expected, buildSkipSlice(mbWidth))
	}
}

func TestNullPFrame(t *testing.T) {
	_, err := NewNullPFrame(16, 16, 0x100, 0)
	assert.IsNotNil(t, err)

	f, err := NewNullPFrame(720, 480, 0x100, 0)
	assert.Equal(t, nil, err)
	// 37 + 9*30 字节ES，两个packet
	assert.Equal(t, 2*mpegts.PacketSize, f.Len())

	out, nextCc := f.Pack(mpegts.NewUint33(93003), 14)
	assert.Equal(t, uint8(0), nextCc)

	first := out[:mpegts.PacketSize]
	second := out[mpegts.PacketSize:]
	assert.Equal(t, uint16(0x100), mpegts.Pid(first))
	assert.Equal(t, true, mpegts.IsPayloadUnitStart(first))
	assert.Equal(t, false, mpegts.IsPayloadUnitStart(second))
	assert.Equal(t, uint8(14), first[3]&0x0f)
	assert.Equal(t, uint8(15), second[3]&0x0f)
	assert.Equal(t, 4, mpegts.PayloadOffset(first))
	// 最后一个packet使用adaptation field填充
	assert.Equal(t, mpegts.PacketSize-(307-184), mpegts.PayloadOffset(second))

	pes, _, err := mpegts.ParsePes(first[4:])
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(0xe0), pes.Sid)
	assert.Equal(t, true, pes.HasPts)
	assert.Equal(t, true, pes.HasDts)
	assert.Equal(t, mpegts.NewUint33(93003), pes.Pts)
	assert.Equal(t, mpegts.NewUint33(93003), pes.Dts)

	// 每次Pack互不影响
	out2, _ := f.Pack(mpegts.NewUint33(96006), 0)
	pes, _, _ = mpegts.ParsePes(out2[4:])
	assert.Equal(t, mpegts.NewUint33(96006), pes.Pts)
	pes, _, _ = mpegts.ParsePes(out[4:])
	assert.Equal(t, mpegts.NewUint33(93003), pes.Pts)

	// 最后一个slice在末尾
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 30, 0x0a, 0x70, 0x10, 0x14, 0x70}, second[mpegts.PacketSize-9:])
}

func TestNullPFrameSinglePacket(t *testing.T) {
	f, err := NewNullPFrame(32, 16, 0x1ff, 4)
	assert.Equal(t, nil, err)
	assert.Equal(t, 4+mpegts.PacketSize, f.Len())

	out, nextCc := f.Pack(mpegts.NewUint33(1), 3)
	assert.Equal(t, uint8(4), nextCc)
	assert.Equal(t, []byte{0, 0, 0, 0}, out[:4])
	packet := out[4:]
	assert.Equal(t, uint16(0x1ff), mpegts.Pid(packet))
	offset := mpegts.PayloadOffset(packet)
	assert.Equal(t, mpegts.PacketSize-44, offset)
	assert.Equal(t, nullPFrameEsHeader[:9], packet[offset:offset+9])

	pes, _, err := mpegts.ParsePes(packet[offset:])
	assert.Equal(t, nil, err)
	assert.Equal(t, mpegts.NewUint33(1), pes.Pts)
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x01, 0x0a, 0x79, 0xc0}, packet[mpegts.PacketSize-7:])
}
