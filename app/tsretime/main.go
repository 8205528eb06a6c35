// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/lalts/pkg/mpegts"
	"github.com/q191201771/lalts/pkg/tsprocessor"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
	"golang.org/x/sync/errgroup"
)

// 读取TS文件，按固定packet数切分成segment后交给tsprocessor处理
//
// 两种用法：
// - 重打时间戳：输出TS文件，倍速和模式由命令行指定
// - demux：视频Processor和音频Processor在两个协程中并行处理同一份segment，ES写入dump文件

type Option struct {
	confFile      string
	inFile        string
	outFile       string
	esDir         string
	rate          float64
	mode          tsprocessor.PlayMode
	demux         bool
	segPacketNum  int
	segDurationMs int
}

func main() {
	defer nazalog.Sync()

	opt := parseFlag()
	config, err := LoadConf(opt.confFile)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load conf failed. file=%s, err=%+v\n", opt.confFile, err)
		os.Exit(1)
	}
	_ = nazalog.Init(func(option *nazalog.Option) {
		*option = config.Log
	})
	nazalog.Infof("bininfo: %s", bininfo.StringifySingleLine())
	nazalog.Infof("version: %s", base.LalTsFullInfo)
	nazalog.Infof("conf: %+v", config)

	content, err := os.ReadFile(opt.inFile)
	nazalog.Assert(nil, err)

	packetSize := config.Processor.TtsSize + mpegts.PacketSize
	segments := splitSegments(content, packetSize, opt.segPacketNum)
	nazalog.Infof("read input. file=%s, len=%d, segments=%d", opt.inFile, len(content), len(segments))

	if opt.demux {
		err = runDemux(opt, config, segments)
	} else {
		err = runRetimestamp(opt, config, segments)
	}
	if err != nil {
		nazalog.Errorf("process failed. err=%+v", err)
		nazalog.Sync()
		os.Exit(1)
	}
	nazalog.Info("done.")
}

// splitSegments 结尾不足一个packet的数据被丢弃
func splitSegments(content []byte, packetSize int, packetNum int) (segments [][]byte) {
	content = content[:len(content)/packetSize*packetSize]
	segSize := packetSize * packetNum
	for len(content) > 0 {
		n := segSize
		if n > len(content) {
			n = len(content)
		}
		segments = append(segments, content[:n])
		content = content[n:]
	}
	return
}

func modOption(config *Config) tsprocessor.ModOption {
	return func(c *tsprocessor.Config) {
		*c = config.Processor
	}
}

func runRetimestamp(opt Option, config *Config, segments [][]byte) error {
	fp, err := os.Create(opt.outFile)
	if err != nil {
		return err
	}
	defer fp.Close()

	sink := newTsSink(fp, config.Processor.TtsSize+mpegts.PacketSize)
	p := tsprocessor.NewProcessor(sink, base.MediaTypeVideo, tsprocessor.StreamOpNone, nil, nil, modOption(config))
	if opt.rate != 1 {
		p.SetRate(opt.rate, opt.mode)
	}

	duration := float64(opt.segDurationMs) / 1000
	for i, segment := range segments {
		position := float64(i) * duration
		if _, err = p.SendSegment(segment, position, duration, false); err != nil {
			if errors.Is(err, base.ErrAborted) || errors.Is(err, base.ErrDisabled) {
				return err
			}
			nazalog.Warnf("segment discarded. index=%d, err=%+v", i, err)
		}
		if sink.err != nil {
			return sink.err
		}
	}
	if err = sink.Flush(); err != nil {
		return err
	}
	nazalog.Infof("output. file=%s, len=%d, bitrate=%dkbit/s", opt.outFile, sink.writer.Written(), int(sink.br.Rate()))
	return nil
}

func runDemux(opt Option, config *Config, segments [][]byte) error {
	videoSink, err := newEsSink(filepath.Join(opt.esDir, "video.lalts.dump"))
	if err != nil {
		return err
	}
	defer videoSink.Close()
	audioSink, err := newEsSink(filepath.Join(opt.esDir, "audio.lalts.dump"))
	if err != nil {
		return err
	}
	defer audioSink.Close()

	audioProc := tsprocessor.NewProcessor(audioSink, base.MediaTypeAudio, tsprocessor.StreamOpDemuxAudio, nil, nil, modOption(config))
	videoProc := tsprocessor.NewProcessor(videoSink, base.MediaTypeVideo, tsprocessor.StreamOpDemuxVideo, audioProc, nil, modOption(config))

	duration := float64(opt.segDurationMs) / 1000
	feed := func(p *tsprocessor.Processor, name string) error {
		for i, segment := range segments {
			// SendSegment会原地修改segment
			segment = append([]byte(nil), segment...)
			_, err := p.SendSegment(segment, float64(i)*duration, duration, false)
			switch {
			case err == nil:
			case errors.Is(err, base.ErrAborted), errors.Is(err, base.ErrDisabled):
				return fmt.Errorf("%s processor stopped at segment %d: %w", name, i, err)
			default:
				nazalog.Warnf("%s segment discarded. index=%d, err=%+v", name, i, err)
			}
		}
		p.Flush()
		return nil
	}

	var g errgroup.Group
	g.Go(func() error {
		err := feed(videoProc, "video")
		if !videoSink.HaveBasePts() {
			// 没有视频时音频Processor会一直等待base pts
			nazalog.Warn("no video base pts found, abort audio processor.")
			audioProc.Abort()
		}
		return err
	})
	g.Go(func() error {
		return feed(audioProc, "audio")
	})
	err = g.Wait()
	nazalog.Infof("es dump. video=%d(%dkbit/s), audio=%d(%dkbit/s)",
		videoSink.Count(), int(videoSink.br.Rate()), audioSink.Count(), int(audioSink.br.Rate()))
	return err
}

func parsePlayMode(s string) (tsprocessor.PlayMode, error) {
	for _, m := range []tsprocessor.PlayMode{
		tsprocessor.PlayModeNormal,
		tsprocessor.PlayModeRetimestampIPB,
		tsprocessor.PlayModeRetimestampIandP,
		tsprocessor.PlayModeRetimestampIonly,
		tsprocessor.PlayModeReverseGop,
	} {
		if m.String() == s {
			return m, nil
		}
	}
	return tsprocessor.PlayModeNormal, fmt.Errorf("unknown play mode. mode=%s", s)
}

func parseFlag() Option {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	c := flag.String("c", "", "specify conf file")
	i := flag.String("i", "", "specify input ts file")
	o := flag.String("o", "", "specify output ts file")
	es := flag.String("es", "./es", "specify es dump dir, used with -demux")
	rate := flag.Float64("rate", 1, "play rate, e.g. 4, -2")
	mode := flag.String("mode", tsprocessor.PlayModeRetimestampIPB.String(), "play mode when rate is not 1")
	demux := flag.Bool("demux", false, "demux to es dump files instead of writing ts")
	n := flag.Int("n", 7000, "number of packets per segment")
	d := flag.Int("d", 2000, "duration of each segment in milliseconds")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.LalTsFullInfo)
		os.Exit(0)
	}

	playMode, err := parsePlayMode(*mode)
	if *i == "" || (*o == "" && !*demux) || *n <= 0 || err != nil {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  %s -i in.ts -o out.ts -rate 4 -mode retimestamp-ionly
  %s -i in.ts -demux -es ./es -c ./conf/tsretime.conf.json
`, os.Args[0], os.Args[0])
		os.Exit(1)
	}
	return Option{
		confFile:      *c,
		inFile:        *i,
		outFile:       *o,
		esDir:         *es,
		rate:          *rate,
		mode:          playMode,
		demux:         *demux,
		segPacketNum:  *n,
		segDurationMs: *d,
	}
}
