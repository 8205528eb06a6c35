// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

// MediaType 送往sink的数据所属的track
type MediaType int

const (
	MediaTypeVideo MediaType = iota
	MediaTypeAudio
	MediaTypeSubtitle
	MediaTypeAuxAudio
	MediaTypeDsmCc
)

func (t MediaType) String() string {
	switch t {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeSubtitle:
		return "subtitle"
	case MediaTypeAuxAudio:
		return "aux-audio"
	case MediaTypeDsmCc:
		return "dsmcc"
	}
	return "unknown"
}

// StreamFormat 解析PMT后通知sink的容器/编码格式
//
// 注意，枚举值的大小参与音轨选择的打分，不要调整顺序
type StreamFormat int

const (
	StreamFormatInvalid StreamFormat = iota
	StreamFormatMpegts
	StreamFormatIsoBmff
	StreamFormatAudioEsAac
	StreamFormatAudioEsAc3
	StreamFormatAudioEsEc3
	StreamFormatAudioEsAtmos
	StreamFormatVideoEsH264
	StreamFormatVideoEsHevc
	StreamFormatVideoEsMpeg2
	StreamFormatSubtitleWebvtt
	StreamFormatUnknown
)

var streamFormatNames = map[StreamFormat]string{
	StreamFormatInvalid:        "invalid",
	StreamFormatMpegts:         "mpegts",
	StreamFormatIsoBmff:        "isobmff",
	StreamFormatAudioEsAac:     "aac",
	StreamFormatAudioEsAc3:     "ac3",
	StreamFormatAudioEsEc3:     "ec3",
	StreamFormatAudioEsAtmos:   "atmos",
	StreamFormatVideoEsH264:    "h264",
	StreamFormatVideoEsHevc:    "hevc",
	StreamFormatVideoEsMpeg2:   "mpeg2",
	StreamFormatSubtitleWebvtt: "webvtt",
	StreamFormatUnknown:        "unknown",
}

func (f StreamFormat) String() string {
	if s, ok := streamFormatNames[f]; ok {
		return s
	}
	return "unknown"
}

// AudioCodecString 音频格式对应的codec字符串，与HLS/DASH中codecs属性的写法一致
func (f StreamFormat) AudioCodecString() string {
	switch f {
	case StreamFormatAudioEsAac:
		return "mp4a.40.2"
	case StreamFormatAudioEsAc3:
		return "ac-3"
	case StreamFormatAudioEsEc3:
		return "ec-3"
	case StreamFormatAudioEsAtmos:
		return "ec+3"
	}
	return "UNKNOWN"
}

// AudioTrackInfo 复用在TS中的一路音频的描述信息
type AudioTrackInfo struct {
	Index           string // "mux-<i>"
	Language        string // 规范化后的语言
	GroupId         string
	Name            string // "pid-<pid>"
	Codec           string
	Characteristics string
	Bandwidth       int
}
