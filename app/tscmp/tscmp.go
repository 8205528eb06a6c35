// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/Comcast/gots/v2/packet"
	"github.com/Comcast/gots/v2/pes"
	"github.com/q191201771/naza/pkg/nazalog"
)

// 逐个packet比较两个TS文件，打印不一致的packet的PID、CC、PTS、DTS、PCR
//
// 空包总是被跳过，例如重打时间戳后被置空的音频

const nullPid = 0x1fff

type packetInfo struct {
	index int
	pkt   packet.Packet
}

func splitPackets(content []byte, skipPid int) (ret []packetInfo) {
	for i := 0; i+packet.PacketSize <= len(content); i += packet.PacketSize {
		var pi packetInfo
		pi.index = i / packet.PacketSize
		copy(pi.pkt[:], content[i:i+packet.PacketSize])
		pid := pi.pkt.PID()
		if pid == nullPid || pid == skipPid {
			continue
		}
		ret = append(ret, pi)
	}
	return
}

func describe(pi *packetInfo) string {
	pkt := &pi.pkt
	s := fmt.Sprintf("index=%d, pid=%d, cc=%d, pusi=%t", pi.index, pkt.PID(), pkt.ContinuityCounter(), pkt.PayloadUnitStartIndicator())
	if af, err := pkt.AdaptationField(); err == nil {
		if pcr, err := af.PCR(); err == nil {
			s += fmt.Sprintf(", pcr=%d", pcr/300)
		}
	}
	if pkt.PayloadUnitStartIndicator() {
		if payload, err := pkt.Payload(); err == nil {
			if h, err := pes.NewPESHeader(payload); err == nil {
				if h.HasPTS() {
					s += fmt.Sprintf(", pts=%d", h.PTS())
				}
				if h.HasDTS() {
					s += fmt.Sprintf(", dts=%d", h.DTS())
				}
			}
		}
	}
	return s
}

func main() {
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.AssertBehavior = nazalog.AssertFatal
	})
	defer nazalog.Sync()

	filename1, filename2, skipPid, maxDiff, dump := parseFlag()

	content1, err := os.ReadFile(filename1)
	nazalog.Assert(nil, err)
	content2, err := os.ReadFile(filename2)
	nazalog.Assert(nil, err)

	pkts1 := splitPackets(content1, skipPid)
	pkts2 := splitPackets(content2, skipPid)
	nazalog.Infof("num of packets. a=%d, b=%d", len(pkts1), len(pkts2))

	m := len(pkts1)
	if m > len(pkts2) {
		m = len(pkts2)
	}

	diff := 0
	for i := 0; i < m && diff < maxDiff; i++ {
		if bytes.Equal(pkts1[i].pkt[:], pkts2[i].pkt[:]) {
			continue
		}
		diff++
		nazalog.Infof("diff %d.\n  a: %s\n  b: %s", diff, describe(&pkts1[i]), describe(&pkts2[i]))
		if dump {
			nazalog.Debugf("\n%s", hex.Dump(pkts1[i].pkt[:]))
			nazalog.Debugf("\n%s", hex.Dump(pkts2[i].pkt[:]))
		}
	}
	if diff == 0 && len(pkts1) == len(pkts2) {
		nazalog.Info("same.")
	}
}

func parseFlag() (string, string, int, int, bool) {
	a := flag.String("a", "", "specify first ts file")
	b := flag.String("b", "", "specify second ts file")
	skip := flag.Int("skip", -1, "skip packets of this pid, e.g. audio")
	n := flag.Int("n", 16, "stop after this number of different packets")
	dump := flag.Bool("dump", false, "hex dump different packets")
	flag.Parse()
	if *a == "" || *b == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  %s -a in.ts -b out.ts -skip 257
`, os.Args[0])
		os.Exit(1)
	}
	return *a, *b, *skip, *n, *dump
}
