package embed

import (
	_ "embed"
)

// DefaultConfigYAML 内置默认配置
// 编译时从 default_config.yaml 嵌入到二进制文件中
//
//go:embed default_config.yaml
var DefaultConfigYAML []byte
