// Package watcher re-reads formula files as they change on disk.
//
// A Watcher subscribes to a directory with fsnotify. Every create or write
// of a .rb, .yaml, .yml or .json file schedules that file; once no further
// event has arrived for the debounce interval, the file is loaded and
// handed to the callback together with any load error. Editors that save
// in several steps therefore produce a single callback.
//
// Example usage:
//
//	w, err := watcher.New("Formula", func(path string, f *formula.Formula, err error) {
//		if err != nil {
//			log.Printf("%s: %v", path, err)
//			return
//		}
//		report(f.Audit())
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := w.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer w.Stop()
package watcher
