package logger

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/logrusorgru/aurora/v3"
)

type Printer interface {
	Output(calldepth int, s string) error
}

type Logger interface {
	Successf(format string, args ...interface{})
	Noticef(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Error(err error)
	SQL(query string, args ...interface{})
}

// ColoredLogger and BWLogger are safe for use by concurrent tenant workers,
// every line is written under a mutex so output never interleaves
type ColoredLogger struct {
	mu      sync.Mutex
	printer Printer
	debug   bool
	sql     bool
}

type BWLogger struct {
	mu      sync.Mutex
	printer Printer
	debug   bool
	sql     bool
}

var _ Logger = (*ColoredLogger)(nil)
var _ Logger = (*BWLogger)(nil)

func NewColorLogger(p Printer, sql, debug bool) *ColoredLogger {
	return &ColoredLogger{
		printer: p,
		debug:   debug,
		sql:     sql,
	}
}

func NewBWLogger(p Printer, sql, debug bool) *BWLogger {
	return &BWLogger{
		printer: p,
		debug:   debug,
		sql:     sql,
	}
}

func (cl *ColoredLogger) output(s string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	_ = cl.printer.Output(3, s)
}

func (cl *ColoredLogger) Debugf(format string, args ...interface{}) {
	if cl.debug {
		msg := fmt.Sprintf("tenants debug: "+format, args...)
		cl.output(aurora.Gray(12, msg).String())
	}
}

func (cl *ColoredLogger) Successf(format string, args ...interface{}) {
	msg := fmt.Sprintf("tenants: "+format, args...)
	cl.output(aurora.Green(msg).String())
}

func (cl *ColoredLogger) Noticef(format string, args ...interface{}) {
	msg := fmt.Sprintf("tenants: "+format, args...)
	cl.output(aurora.Cyan(msg).String())
}

func (cl *ColoredLogger) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf("tenants warning: "+format, args...)
	cl.output(aurora.Yellow(msg).String())
}

func (cl *ColoredLogger) Error(err error) {
	msg := fmt.Sprintf("tenants error: %s", err.Error())
	cl.output(aurora.Red(msg).String())
}

func (cl *ColoredLogger) SQL(query string, args ...interface{}) {
	if cl.sql {
		cl.output(aurora.Gray(15, formatSQL(query, args...)).String())
	}
}

func (bwl *BWLogger) output(s string) {
	bwl.mu.Lock()
	defer bwl.mu.Unlock()
	_ = bwl.printer.Output(3, s)
}

func (bwl *BWLogger) Debugf(format string, args ...interface{}) {
	if bwl.debug {
		bwl.output(fmt.Sprintf("tenants debug: "+format, args...))
	}
}

func (bwl *BWLogger) Successf(format string, args ...interface{}) {
	bwl.output(fmt.Sprintf("tenants: "+format, args...))
}

func (bwl *BWLogger) Noticef(format string, args ...interface{}) {
	bwl.output(fmt.Sprintf("tenants: "+format, args...))
}

func (bwl *BWLogger) Warnf(format string, args ...interface{}) {
	bwl.output(fmt.Sprintf("tenants warning: "+format, args...))
}

func (bwl *BWLogger) Error(err error) {
	bwl.output(fmt.Sprintf("tenants error: %s", err.Error()))
}

func (bwl *BWLogger) SQL(query string, args ...interface{}) {
	if bwl.sql {
		bwl.output(formatSQL(query, args...))
	}
}

func formatSQL(query string, args ...interface{}) string {
	var buf bytes.Buffer
	buf.WriteString("tenants running sql: ")
	buf.WriteString(query)

	if len(args) == 0 {
		return buf.String()
	}

	buf.WriteString("\nquery parameters: ")

	for i := range args {
		if i+1 < len(args) {
			buf.WriteString(fmt.Sprintf("{%#v}, ", args[i]))
		} else {
			buf.WriteString(fmt.Sprintf("{%#v}", args[i]))
		}
	}

	return buf.String()
}
