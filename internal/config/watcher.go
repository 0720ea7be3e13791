package config

import (
	"path/filepath"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"

	"smartfan/internal/logger"
)

// FileWatcher calls onChange whenever path is written or recreated. The
// parent directory is watched so editors that replace the file are seen.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewFileWatcher creates a stopped watcher for path.
func NewFileWatcher(path string, onChange func()) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		path:     path,
		watcher:  w,
		onChange: onChange,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Calling it twice is a no-op.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return nil
	}

	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return err
	}
	fw.running = true

	logger.WithComponent("config-watcher").Info().Str("path", fw.path).Msg("Watching config file")
	go fw.loop()
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return fw.watcher.Close()
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.stop)
	err := fw.watcher.Close()
	<-fw.done
	return err
}

// IsRunning reports whether the watch loop is active.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FileWatcher) loop() {
	defer close(fw.done)
	log := logger.WithComponent("config-watcher")
	name := filepath.Base(fw.path)

	for {
		select {
		case <-fw.stop:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Info().Str("path", fw.path).Str("event", event.Op.String()).Msg("Config file changed")
			if fw.onChange != nil {
				fw.onChange()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("path", fw.path).Msg("Config watcher error")
		}
	}
}

// NewReloadWatcher reloads path on change. A changed logging section is
// passed to onLogging; changes anywhere else only produce a warning because
// the controller keeps the curve and BMC settings it started with.
func NewReloadWatcher(path string, current *Config, onLogging func(logger.Config)) (*FileWatcher, error) {
	var mu sync.Mutex
	applied := *current

	return NewFileWatcher(path, func() {
		log := logger.WithComponent("config-watcher")

		next, err := Load(path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to reload configuration, keeping current settings")
			return
		}

		mu.Lock()
		defer mu.Unlock()

		if next.Logging != applied.Logging {
			if onLogging != nil {
				onLogging(next.Logging)
			}
			applied.Logging = next.Logging
		}

		for _, section := range restartRequired(&applied, next) {
			log.Warn().Str("section", section).Msg("Configuration change requires a restart to take effect")
		}
	})
}

// restartRequired lists the sections that differ and are not applied live.
func restartRequired(old, next *Config) []string {
	var changed []string
	if old.IPMI != next.IPMI {
		changed = append(changed, "ipmi")
	}
	if !reflect.DeepEqual(old.FanSpeeds, next.FanSpeeds) {
		changed = append(changed, "fan_speeds")
	}
	if old.Controller != next.Controller {
		changed = append(changed, "controller")
	}
	if !reflect.DeepEqual(old.Sender, next.Sender) {
		changed = append(changed, "sender")
	}
	return changed
}
