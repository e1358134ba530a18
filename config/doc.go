// Package config 提供统一配置加载：默认值 → YAML 文件 → 环境变量
// 三层覆盖，前缀 NEUROSWARM 的环境变量拥有最高优先级。
package config
