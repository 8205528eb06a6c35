// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/asticode/go-astits"
	"github.com/q191201771/naza/pkg/nazalog"
)

// 打印TS文件中的PAT、PMT，以及每个PES的PTS、DTS和首个packet上的PCR，用来检查tsretime的输出

type pidStat struct {
	pesCount int
	prevPts  int64
	prevDts  int64
}

func main() {
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.AssertBehavior = nazalog.AssertFatal
	})
	defer nazalog.Sync()

	filename, onlyPid, maxPes := parseFlag()

	fp, err := os.Open(filename)
	nazalog.Assert(nil, err)
	defer fp.Close()

	stats := make(map[uint16]*pidStat)
	dmx := astits.NewDemuxer(context.Background(), bufio.NewReader(fp))
	for {
		d, err := dmx.NextData()
		if err != nil {
			if err == astits.ErrNoMorePackets {
				break
			}
			nazalog.Errorf("demux failed. err=%+v", err)
			break
		}

		if d.PAT != nil {
			for _, p := range d.PAT.Programs {
				nazalog.Infof("PAT. program=%d, pmt pid=%d", p.ProgramNumber, p.ProgramMapID)
			}
			continue
		}
		if d.PMT != nil {
			nazalog.Infof("PMT. program=%d, pcr pid=%d", d.PMT.ProgramNumber, d.PMT.PCRPID)
			for _, es := range d.PMT.ElementaryStreams {
				nazalog.Infof("  es. pid=%d, stream type=%v", es.ElementaryPID, es.StreamType)
			}
			continue
		}
		if d.PES == nil || d.FirstPacket == nil {
			continue
		}

		pid := d.FirstPacket.Header.PID
		if onlyPid >= 0 && int(pid) != onlyPid {
			continue
		}
		s, ok := stats[pid]
		if !ok {
			s = &pidStat{prevPts: -1, prevDts: -1}
			stats[pid] = s
		}
		s.pesCount++
		if maxPes > 0 && s.pesCount > maxPes {
			continue
		}

		pts, dts := int64(-1), int64(-1)
		if oh := d.PES.Header.OptionalHeader; oh != nil {
			if oh.PTS != nil {
				pts = oh.PTS.Base
			}
			if oh.DTS != nil {
				dts = oh.DTS.Base
			}
		}
		pcr := int64(-1)
		discontinuity := false
		if af := d.FirstPacket.AdaptationField; af != nil {
			discontinuity = af.DiscontinuityIndicator
			if af.HasPCR && af.PCR != nil {
				pcr = af.PCR.Base
			}
		}

		line := fmt.Sprintf("PES. pid=%d, len=%d, pts=%d, dts=%d, pcr=%d", pid, len(d.PES.Data), pts, dts, pcr)
		if s.prevPts >= 0 && pts >= 0 {
			line += fmt.Sprintf(", pts diff=%d", pts-s.prevPts)
		}
		if discontinuity {
			line += ", discontinuity"
		}
		nazalog.Info(line)
		if s.prevDts >= 0 && dts >= 0 && dts < s.prevDts {
			nazalog.Warnf("dts go back. pid=%d, prev=%d, curr=%d", pid, s.prevDts, dts)
		}
		s.prevPts, s.prevDts = pts, dts
	}

	for pid, s := range stats {
		nazalog.Infof("summary. pid=%d, pes=%d", pid, s.pesCount)
	}
}

func parseFlag() (string, int, int) {
	i := flag.String("i", "", "specify ts file")
	pid := flag.Int("pid", -1, "only dump pes of this pid")
	n := flag.Int("n", 0, "max number of pes dumped per pid, 0 means no limit")
	flag.Parse()
	if *i == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  %s -i out.ts -pid 256 -n 100
`, os.Args[0])
		os.Exit(1)
	}
	return *i, *pid, *n
}
