package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReloadFunc is told about every config file change. err is non-nil when the
// new file failed to load or validate; Settings are left untouched then.
type ReloadFunc func(cfg *Config, err error)

// Watch hot-reloads v's config file into s. Values changed with Settings.Set
// are overwritten by the file's on every reload.
func Watch(v *viper.Viper, s *Settings, onReload ReloadFunc) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		Reload(v, s, onReload)
	})
	v.WatchConfig()
}

// Reload loads v into s once. It is what Watch runs on each change.
func Reload(v *viper.Viper, s *Settings, onReload ReloadFunc) {
	cfg, err := LoadFrom(v)
	if err == nil {
		s.Replace(cfg)
	}
	if onReload != nil {
		onReload(cfg, err)
	}
}
