package config

import "github.com/tokmz/pushgate/pkg/errors"

var (
	// ErrConfigNotFound 配置文件未找到
	ErrConfigNotFound = errors.New(3001, "config file not found")
	// ErrConfigReadFailed 配置读取失败
	ErrConfigReadFailed = errors.New(3002, "config read failed")
	// ErrConfigDecodeFailed 配置反序列化失败
	ErrConfigDecodeFailed = errors.New(3003, "config decode failed")
)
