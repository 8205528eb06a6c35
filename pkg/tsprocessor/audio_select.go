// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package tsprocessor

import (
	"fmt"
	"strings"

	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/lalts/pkg/mpegts"
	"golang.org/x/text/language"
)

const (
	muxedAudioIndexPrefix     = "mux-"
	muxedAudioCharacteristics = "muxed-audio"
)

// NormalizeLanguage 把ISO639语言码统一为2字母或3字母形式，无法识别的只做小写处理
func NormalizeLanguage(lang string, langCodePreference string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return lang
	}
	b, err := language.ParseBase(lang)
	if err != nil {
		return lang
	}
	if langCodePreference == LangCode2Char {
		return b.String()
	}
	return b.ISO3()
}

// isAudioFormatDisabled 根据配置过滤音频格式
//
// 禁用EC3时同时禁用AC3和ATMOS
func isAudioFormatDisabled(format base.StreamFormat, config *Config) bool {
	switch format {
	case base.StreamFormatAudioEsAc3, base.StreamFormatAudioEsEc3:
		return config.DisableEc3
	case base.StreamFormatAudioEsAtmos:
		return config.DisableEc3 || config.DisableAtmos
	}
	return false
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// SelectAudioIndex 选出最合适的音频
//
// 语言命中加 (n-i)*100000，编码命中加 (n-i)*100，未配置编码偏好时加格式枚举值。
// 分数相同时取靠前的。被禁用的格式不参与选择
//
// @return 没有可选的音频时返回-1
func SelectAudioIndex(audio []mpegts.Component, config *Config) int {
	languages := make([]string, len(config.PreferredLanguages))
	for i, l := range config.PreferredLanguages {
		languages[i] = NormalizeLanguage(l, config.LangCodePreference)
	}

	bestIndex := -1
	bestScore := -1
	for i, c := range audio {
		if isAudioFormatDisabled(c.Format, config) {
			Log.Tracef("audio track disabled. index=%d, pid=%d, format=%s", i, c.Pid, c.Format)
			continue
		}
		score := 0
		lang := NormalizeLanguage(c.Language, config.LangCodePreference)
		if idx := indexOf(languages, lang); idx != -1 {
			score += (len(languages) - idx) * 100000
		}
		if len(config.PreferredCodecs) > 0 {
			if idx := indexOf(config.PreferredCodecs, c.Format.AudioCodecString()); idx != -1 {
				score += (len(config.PreferredCodecs) - idx) * 100
			}
		} else if c.Format != base.StreamFormatUnknown {
			score += int(c.Format)
		}
		Log.Tracef("audio track score. index=%d, pid=%d, lang=%s, format=%s, score=%d", i, c.Pid, c.Language, c.Format, score)
		if score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}
	return bestIndex
}

func muxedAudioIndex(i int) string {
	return fmt.Sprintf("%s%d", muxedAudioIndexPrefix, i)
}

// BuildAudioTrackInfos 复用在TS中的音频转换为轨道信息
func BuildAudioTrackInfos(audio []mpegts.Component, groupId string, config *Config) []base.AudioTrackInfo {
	infos := make([]base.AudioTrackInfo, 0, len(audio))
	for i, c := range audio {
		infos = append(infos, base.AudioTrackInfo{
			Index:           muxedAudioIndex(i),
			Language:        NormalizeLanguage(c.Language, config.LangCodePreference),
			GroupId:         groupId,
			Name:            fmt.Sprintf("pid-%d", c.Pid),
			Codec:           c.Format.AudioCodecString(),
			Characteristics: muxedAudioCharacteristics,
		})
	}
	return infos
}
