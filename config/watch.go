package config

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads Settings from a file whenever it changes on disk,
// the way the teacher's fsnotify-backed vfs watcher turns OS events
// into a typed channel: one goroutine owns the fsnotify.Watcher and
// republishes interesting events.
type Watcher struct {
	path string
	w    *fsnotify.Watcher
	upC  chan *Settings
	erC  chan error
}

// WatchFile starts watching path for changes, emitting a freshly
// loaded Settings on Updates() after every write. The initial Settings
// is loaded synchronously and returned alongside the Watcher.
func WatchFile(path string) (*Watcher, *Settings, error) {
	initial, err := Load(path)
	if err != nil {
		return nil, nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, nil, err
	}

	cw := &Watcher{
		path: path,
		w:    fw,
		upC:  make(chan *Settings, 1),
		erC:  make(chan error, 1),
	}

	go cw.loop()

	return cw, initial, nil
}

func (cw *Watcher) loop() {
	for {
		select {
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			settings, err := Load(cw.path)
			if err != nil {
				cw.erC <- err
				continue
			}

			cw.upC <- settings
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}

			cw.erC <- err
		}
	}
}

// Updates yields a freshly reloaded Settings after every write to the
// watched file.
func (cw *Watcher) Updates() <-chan *Settings { return cw.upC }

// Errors yields reload failures: a write that produced invalid YAML,
// or an underlying fsnotify error.
func (cw *Watcher) Errors() <-chan error { return cw.erC }

// Close stops the watcher.
func (cw *Watcher) Close() error {
	return cw.w.Close()
}
