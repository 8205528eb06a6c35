// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// Frame 一个ES帧，用于打包成TS packet
//
// 用于生成null P-frame之类的合成数据，以及构造测试流
type Frame struct {
	Pts Uint33
	Dts Uint33
	Cc  uint8 // 打包时先自增再写入，打包后为最后一个packet的值

	Pid uint16
	Sid uint8 // PES的stream_id

	// 首个packet带adaptation field，置random_access_indicator
	Key bool

	// 首个packet写入PCR，值为Dts
	WithPcr bool

	// PTS_DTS_flags，为0时根据Pts和Dts是否相等决定
	PtsDtsFlag uint8

	Raw []byte
}

// Pack 把帧切分为TS packet
//
// 注意，内部会增加 Frame.Cc 的值.
//
// @return: 内存块为独立申请，调用结束后，内部不再持有
func (frame *Frame) Pack() []byte {
	bufLen := len(frame.Raw) * 2 // 预分配一块足够大的内存
	if bufLen < 1024 {
		bufLen = 1024
	}
	buf := make([]byte, bufLen)

	flags := frame.PtsDtsFlag
	if flags == 0 {
		flags = 0x2
		if frame.Dts != frame.Pts {
			flags = 0x3
		}
	}

	lpos := 0              // 当前输入帧的处理位置
	rpos := len(frame.Raw) // 当前输入帧大小
	first := true          // 是否为帧的首个packet
	packetPosAtBuf := 0    // 当前输出packet相对于整个输出内存块的位置

	for lpos != rpos || first {
		if packetPosAtBuf+PacketSize > len(buf) {
			newBuf := make([]byte, 2*len(buf))
			copy(newBuf, buf)
			buf = newBuf
		}

		packet := buf[packetPosAtBuf : packetPosAtBuf+PacketSize]
		wpos := 0
		packetPosAtBuf += PacketSize

		frame.Cc = (frame.Cc + 1) & 0x0f

		packet[0] = syncByte
		packet[1] = 0x0
		if first {
			packet[1] = 0x40 // payload_unit_start_indicator
		}
		packet[1] |= uint8((frame.Pid >> 8) & 0x1F)
		packet[2] = uint8(frame.Pid & 0xFF)
		packet[3] = 0x10 | frame.Cc
		wpos += PacketHeaderSize

		if first {
			if frame.Key || frame.WithPcr {
				packet[3] |= 0x20
				packet[4] = 1
				packet[5] = 0
				if frame.Key {
					packet[5] |= 0x40 // random_access_indicator
				}
				wpos += 2
				if frame.WithPcr {
					packet[4] = 7
					packet[5] |= 0x10 // PCR_flag
					WritePcr(packet[6:], frame.Dts, true)
					wpos += 6
				}
			}

			packet[wpos] = 0x00
			packet[wpos+1] = 0x00
			packet[wpos+2] = 0x01
			packet[wpos+3] = frame.Sid
			wpos += 4

			headerSize := uint8(0)
			if flags&0x2 != 0 {
				headerSize += 5
			}
			if flags == 0x3 {
				headerSize += 5
			}

			pesSize := rpos + int(headerSize) + 3
			if pesSize > 0xFFFF || IsVideoStreamId(frame.Sid) {
				pesSize = 0
			}

			packet[wpos] = uint8(pesSize >> 8)
			packet[wpos+1] = uint8(pesSize & 0xFF)
			packet[wpos+2] = 0x80
			packet[wpos+3] = flags << 6
			packet[wpos+4] = headerSize
			wpos += 5

			switch flags {
			case 0x2:
				WriteTimestamp(packet[wpos:], PtsDtsPrefixPtsOnly, frame.Pts)
				wpos += 5
			case 0x3:
				WriteTimestamp(packet[wpos:], PtsDtsPrefixPts, frame.Pts)
				WriteTimestamp(packet[wpos+5:], PtsDtsPrefixDts, frame.Dts)
				wpos += 10
			}

			first = false
		}

		bodySize := PacketSize - wpos
		inSize := rpos - lpos

		if bodySize <= inSize {
			copy(packet[wpos:], frame.Raw[lpos:lpos+bodySize])
			lpos += bodySize
			continue
		}

		// 剩余数据不足一个packet，用adaptation field的stuffing填充
		stuffSize := bodySize - inSize
		if packet[3]&0x20 != 0 {
			base := 5 + int(packet[4]) // adaptation field之后
			if wpos > base {
				copy(packet[base+stuffSize:], packet[base:wpos])
			}
			wpos += stuffSize

			packet[4] += uint8(stuffSize)
			for i := 0; i < stuffSize; i++ {
				packet[base+i] = 0xFF
			}
		} else {
			packet[3] |= 0x20

			base := 4
			if wpos > base {
				copy(packet[base+stuffSize:], packet[base:wpos])
			}
			wpos += stuffSize

			packet[4] = uint8(stuffSize - 1)
			if stuffSize >= 2 {
				packet[5] = 0
				for i := 0; i < stuffSize-2; i++ {
					packet[6+i] = 0xFF
				}
			}
		}

		copy(packet[wpos:], frame.Raw[lpos:rpos])
		lpos = rpos
	}

	return buf[:packetPosAtBuf]
}
