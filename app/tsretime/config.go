// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/q191201771/lalts/pkg/tsprocessor"
	"github.com/q191201771/naza/pkg/nazajson"
	"github.com/q191201771/naza/pkg/nazalog"
)

type Config struct {
	ConfVersion string             `json:"conf_version"`
	Log         nazalog.Option     `json:"log"`
	Processor   tsprocessor.Config `json:"processor"`
}

// LoadConf
//
// @param confFile: 为空时全部使用默认值
func LoadConf(confFile string) (*Config, error) {
	rawContent := []byte("{}")
	if confFile != "" {
		var err error
		if rawContent, err = os.ReadFile(confFile); err != nil {
			return nil, err
		}
	}

	config := Config{
		Processor: tsprocessor.DefaultConfig(),
	}
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, err
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, err
	}

	// 检查配置必须项
	if tts := config.Processor.TtsSize; tts != 0 && tts != 4 {
		return nil, fmt.Errorf("invalid processor.tts_size. value=%d", tts)
	}

	// 配置不存在时，设置默认值
	if !j.Exist("log.level") {
		config.Log.Level = nazalog.LevelInfo
	}
	if !j.Exist("log.is_to_stdout") {
		config.Log.IsToStdout = true
	}
	if !j.Exist("log.short_file_flag") {
		config.Log.ShortFileFlag = true
	}
	if !j.Exist("log.assert_behavior") {
		config.Log.AssertBehavior = nazalog.AssertFatal
	}
	// 处理文件时默认不按真实时间节流
	if !j.Exist("processor.throttle_enable") {
		config.Processor.ThrottleEnable = false
	}

	return &config, nil
}
