// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "strings"

// 版本信息相关
// 一部分版本信息使用了naza.bininfo，另一部分在本文件提供

// LalTsVersion 整个工程的版本号。注意，该变量由外部脚本修改维护，不要手动在代码中修改
//
const LalTsVersion = "v0.1.0"

// ConfVersion tsretime的配置文件的版本号
//
const ConfVersion = "v0.1.0"

var (
	LalTsLibraryName = "lalts"
	LalTsGithubRepo  = "github.com/q191201771/lalts"

	// LalTsFullInfo e.g. lalts v0.1.0 (github.com/q191201771/lalts)
	LalTsFullInfo = LalTsLibraryName + " " + LalTsVersion + " (" + LalTsGithubRepo + ")"

	// LalTsVersionDot e.g. 0.1.0
	LalTsVersionDot string
)

func init() {
	LalTsVersionDot = strings.TrimPrefix(LalTsVersion, "v")
}
