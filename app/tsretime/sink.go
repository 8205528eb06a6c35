// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"io"

	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/naza/pkg/bitrate"
	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazalog"
)

// sinkLogger 两种sink共用的通知处理，只打日志
type sinkLogger struct {
	name        string
	haveBasePts nazaatomic.Bool
}

func (s *sinkLogger) NotifyFirstVideoPts(pts uint64) {
	nazalog.Infof("[%s] first video pts. pts=%d", s.name, pts)
}

func (s *sinkLogger) NotifyVideoBasePts(basePts uint64) {
	nazalog.Infof("[%s] video base pts. base pts=%d", s.name, basePts)
	s.haveBasePts.Store(true)
}

func (s *sinkLogger) SetStreamFormat(video, audio, auxAudio base.StreamFormat) {
	nazalog.Infof("[%s] stream format. video=%s, audio=%s, aux audio=%s", s.name, video, audio, auxAudio)
}

func (s *sinkLogger) SetAudioTrackInfoFromMuxedStream(tracks []base.AudioTrackInfo) {
	for _, t := range tracks {
		nazalog.Infof("[%s] muxed audio track. %+v", s.name, t)
	}
}

func (s *sinkLogger) SetCurrentAudioTrackIndex(index string) {
	nazalog.Infof("[%s] current audio track. index=%s", s.name, index)
}

func (s *sinkLogger) HaveBasePts() bool {
	return s.haveBasePts.Load()
}

// ----- tsSink --------------------------------------------------------------------------------------------------------

type tsSink struct {
	sinkLogger
	writer *base.PacketBufWriter
	br     bitrate.Bitrate
	err    error
}

func newTsSink(w io.Writer, packetSize int) *tsSink {
	return &tsSink{
		sinkLogger: sinkLogger{name: "ts"},
		writer:     base.NewPacketBufWriter(w, packetSize, 512),
		br:         bitrate.New(),
	}
}

func (s *tsSink) SendStreamCopy(mediaType base.MediaType, buf []byte, pts, dts, duration float64) {
	s.br.Add(len(buf))
	if err := s.writer.Write(buf); err != nil && s.err == nil {
		nazalog.Errorf("[%s] write failed. err=%+v", s.name, err)
		s.err = err
	}
}

func (s *tsSink) Flush() error {
	return s.writer.Flush()
}

// ----- esSink --------------------------------------------------------------------------------------------------------

type esSink struct {
	sinkLogger
	df    *base.DumpFile
	br    bitrate.Bitrate
	count int
}

func newEsSink(filename string) (*esSink, error) {
	df := base.NewDumpFile()
	if err := df.OpenToWrite(filename); err != nil {
		return nil, err
	}
	return &esSink{
		sinkLogger: sinkLogger{name: filename},
		df:         df,
		br:         bitrate.New(),
	}, nil
}

func (s *esSink) SendStreamCopy(mediaType base.MediaType, buf []byte, pts, dts, duration float64) {
	s.br.Add(len(buf))
	s.count++
	if err := s.df.Write(mediaType, uint32(pts*1000), buf); err != nil {
		nazalog.Errorf("[%s] write dump failed. err=%+v", s.name, err)
	}
}

func (s *esSink) Count() int {
	return s.count
}

func (s *esSink) Close() error {
	return s.df.Close()
}
