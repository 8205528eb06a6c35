// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package m2v

import "github.com/q191201771/lalts/pkg/base"

// Mpeg2Scanner 从sequence header中获取帧宽高，遇到slice即停止扫描
type Mpeg2Scanner struct {
	width  int
	height int
}

func NewMpeg2Scanner() *Mpeg2Scanner {
	return &Mpeg2Scanner{
		width:  -1,
		height: -1,
	}
}

func (s *Mpeg2Scanner) RemainderLimit() int {
	return ScanRemainderSize
}

func (s *Mpeg2Scanner) OnPesStart() {}

func (s *Mpeg2Scanner) SetIonly(bool) {}

func (s *Mpeg2Scanner) NeedInterlaceProbe() bool {
	return false
}

// FrameSize 没有收到过sequence header时返回-1
func (s *Mpeg2Scanner) FrameSize() (width, height int) {
	return s.width, s.height
}

func (s *Mpeg2Scanner) ProcessStartCode(store base.ByteStore, pos int) (keepScanning bool) {
	if pos+3 >= store.Len() {
		return true
	}
	code := store.ByteAt(pos + 3)
	switch {
	case code == StartCodeSequenceHeader:
		sh, err := ParseSequenceHeader(store, pos)
		if err != nil {
			Log.Warnf("parse sequence header failed. err=%+v", err)
			return true
		}
		if sh.Width != s.width || sh.Height != s.height {
			Log.Infof("mpeg2 sequence frame size %dx%d", sh.Width, sh.Height)
		}
		s.width, s.height = sh.Width, sh.Height
		return false
	case IsSliceStartCode(code):
		// I帧内部的slice，本PES中不会再有sequence header
		return false
	}
	return true
}
