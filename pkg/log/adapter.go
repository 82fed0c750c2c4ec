// Package log bridges third-party logger interfaces onto logrus.
package log

import "github.com/sirupsen/logrus"

// BadgerLogger implements badger.Logger on top of a logrus entry.
// Badger reports routine compaction and value log activity at INFO; those
// messages are demoted to DEBUG so they do not drown the crawl log.
type BadgerLogger struct {
	entry *logrus.Entry
}

// NewBadgerLogger creates a new adapter
func NewBadgerLogger(entry *logrus.Entry) *BadgerLogger {
	return &BadgerLogger{entry: entry}
}

// Errorf logs an error message
func (l *BadgerLogger) Errorf(f string, v ...interface{}) { l.entry.Errorf(f, v...) }

// Warningf logs a warning message
func (l *BadgerLogger) Warningf(f string, v ...interface{}) { l.entry.Warnf(f, v...) }

// Infof logs badger's informational chatter at debug level
func (l *BadgerLogger) Infof(f string, v ...interface{}) { l.entry.Debugf(f, v...) }

// Debugf logs a debug message
func (l *BadgerLogger) Debugf(f string, v ...interface{}) { l.entry.Tracef(f, v...) }
