// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/unique"

const (
	UkPreTsProcessor = "TSPROC"
	UkPreDemuxer     = "DEMUX"
)

func GenUkTsProcessor() string {
	return siUkTsProcessor.GenUniqueKey()
}

func GenUkDemuxer() string {
	return siUkDemuxer.GenUniqueKey()
}

var (
	siUkTsProcessor *unique.SingleGenerator
	siUkDemuxer     *unique.SingleGenerator
)

func init() {
	siUkTsProcessor = unique.NewSingleGenerator(UkPreTsProcessor)
	siUkDemuxer = unique.NewSingleGenerator(UkPreDemuxer)
}
