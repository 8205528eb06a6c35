// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- 通用的 ---------------------------------------------------------------------------------------------------------

var (
	ErrShortBuffer  = errors.New("lalts: buffer too short")
	ErrFileNotExist = errors.New("lalts: file not exist")
)

func NewErrShortBuffer(need, actual int, msg string) error {
	return fmt.Errorf("%w. need=%d, actual=%d, msg=%s", ErrShortBuffer, need, actual, msg)
}

// ----- pkg/avc -------------------------------------------------------------------------------------------------------

var (
	ErrAvc           = errors.New("lalts.avc: fxxk")
	ErrBitstreamEnd  = errors.New("lalts.avc: read or write past end of bitstream")
	ErrGolombTooLong = errors.New("lalts.avc: exp-golomb prefix too long")
)

// ----- pkg/m2v -------------------------------------------------------------------------------------------------------

var ErrM2v = errors.New("lalts.m2v: fxxk")

// ----- pkg/mpegts ----------------------------------------------------------------------------------------------------

var (
	ErrMpegts     = errors.New("lalts.mpegts: fxxk")
	ErrPtsMarker  = errors.New("lalts.mpegts: invalid pts/dts marker bits")
	ErrPsiCrc     = errors.New("lalts.mpegts: psi crc32 mismatch")
	ErrPsiSection = errors.New("lalts.mpegts: invalid psi section")
	ErrPesHeader  = errors.New("lalts.mpegts: invalid pes header")
)

func NewErrPsiCrc(expected, actual uint32) error {
	return fmt.Errorf("%w. expected=%08x, actual=%08x", ErrPsiCrc, expected, actual)
}

// ----- pkg/tsprocessor -----------------------------------------------------------------------------------------------

var (
	ErrSegmentNotAligned = errors.New("lalts.tsprocessor: segment size not multiple of packet size")
	ErrSegmentSync       = errors.New("lalts.tsprocessor: segment does not start with a valid ts packet")
	ErrDisabled          = errors.New("lalts.tsprocessor: processor disabled, call SetRate to enable")
	ErrAborted           = errors.New("lalts.tsprocessor: aborted")
	ErrPtsError          = errors.New("lalts.tsprocessor: pts error while demuxing")
)

func NewErrSegmentNotAligned(size, packetSize int) error {
	return fmt.Errorf("%w. size=%d, packet size=%d", ErrSegmentNotAligned, size, packetSize)
}

// ---------------------------------------------------------------------------------------------------------------------
