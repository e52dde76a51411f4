/*
DESCRIPTION
  watch.go provides watch mode, in which files created in a directory are
  split once writing to them has settled.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/fsnotify/fsnotify"

	"github.com/ausocean/utils/logging"
)

// settleTime is how long a created file must go without writes before it is
// split.
const settleTime = 2 * time.Second

// arrivals tracks files that have been created or written to, and when they
// were last touched.
type arrivals map[string]time.Time

// touch records an event for name at t.
func (a arrivals) touch(name string, t time.Time) { a[name] = t }

// settled removes and returns, in name order, the files last touched at least
// d before now.
func (a arrivals) settled(now time.Time, d time.Duration) []string {
	var names []string
	for name, t := range a {
		if now.Sub(t) >= d {
			names = append(names, name)
		}
	}
	for _, name := range names {
		delete(a, name)
	}
	sort.Strings(names)
	return names
}

// outPrefix returns the output path prefix for the images split from the file
// at in, so that images from different files do not collide.
func outPrefix(out, in string) string {
	base := filepath.Base(in)
	return out + strings.TrimSuffix(base, filepath.Ext(base)) + "_"
}

// isOutput reports whether name falls under the output path prefix out, so
// that images written into a watched directory are not split again.
func isOutput(out, name string) bool {
	o, err := filepath.Abs(out)
	if err != nil {
		return false
	}
	n, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	if strings.HasSuffix(out, "/") {
		o += "/"
	}
	return strings.HasPrefix(n, o)
}

// watch splits each file created in o.watch until interrupted or terminated.
func watch(o options, log logging.Logger) error {
	o.loop = false

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}
	defer w.Close()

	err = w.Add(o.watch)
	if err != nil {
		return fmt.Errorf("could not watch directory: %w", err)
	}
	log.Info("watching directory", "dir", o.watch)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	notify(log, daemon.SdNotifyReady)
	defer notify(log, daemon.SdNotifyStopping)

	tick := time.NewTicker(settleTime / 2)
	defer tick.Stop()

	pending := make(arrivals)
	for {
		select {
		case s := <-sig:
			log.Info("received signal, stopping", "signal", s.String())
			return nil

		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if isOutput(o.out, e.Name) {
				continue
			}
			if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) {
				log.Debug("file event", "event", e.String())
				pending.touch(e.Name, time.Now())
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warning("watcher error", "error", err.Error())

		case now := <-tick.C:
			for _, name := range pending.settled(now, settleTime) {
				fi, err := os.Stat(name)
				if err != nil || !fi.Mode().IsRegular() {
					log.Debug("ignoring", "name", name)
					continue
				}
				err = split(o, name, outPrefix(o.out, name), log)
				if err != nil {
					log.Error(pkg+"could not split file", "file", name, "error", err.Error())
				}
			}
		}
	}
}

// notify tells systemd of a state change. It does nothing when not run as a
// systemd notify service.
func notify(log logging.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warning("could not notify systemd", "state", state, "error", err.Error())
		return
	}
	log.Debug("systemd notified", "state", state, "sent", sent)
}
