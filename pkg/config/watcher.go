package config

import (
	"github.com/fsnotify/fsnotify"
)

// startWatch 调用方必须持有 mu
func (c *Config) startWatch() {
	if c.watching {
		return
	}
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		c.mu.RLock()
		watching := c.watching
		onChange := c.onChange
		c.mu.RUnlock()

		if !watching || onChange == nil {
			return
		}
		onChange(c)
	})
	c.viper.WatchConfig()
	c.watching = true
}

// StartWatch 开始监控配置文件变更，重复调用无副作用
func (c *Config) StartWatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startWatch()
}

// StopWatch 停止监控
// viper 不提供关闭底层 fsnotify watcher 的方法，这里仅让回调失效
func (c *Config) StopWatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watching = false
}

// IsWatching 是否正在监控
func (c *Config) IsWatching() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watching
}
