package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads path whenever it is written and passes the new Config to onChange.
// A reload that fails to parse or validate is logged and the previous config stays active.
// It blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, logger zerolog.Logger, onChange func(*Config)) error {
	log := logger.With().Str("component", "config_watch").Str("path", path).Logger()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// 监听目录，编辑器原子保存会替换文件 inode
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	log.Info().Msg("开始监听配置文件")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				log.Error().Err(err).Msg("配置重载失败，继续使用旧配置")
				continue
			}

			log.Info().Msg("配置已重载")
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("配置监听出错")
		}
	}
}
