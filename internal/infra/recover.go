package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// GoRecoverable runs f and restarts it in a fresh goroutine after a panic.
// maxPanics bounds the restarts, a negative value means unbounded.
func GoRecoverable(maxPanics int, id string, f func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.WithFields(log.Fields{
			"job":   id,
			"panic": fmt.Sprint(r),
			"at":    panicOrigin(),
		}).Error("job panicked")
		if maxPanics == 0 {
			log.WithField("job", id).Fatal("panic budget exhausted, exiting")
		}
		if maxPanics > 0 {
			maxPanics--
		}
		log.WithField("job", id).Debug("restarting job")
		go GoRecoverable(maxPanics, id, f)
	}()
	f()
}

// panicOrigin walks the stack past the runtime frames to the frame that
// raised the panic.
func panicOrigin() string {
	var pc [16]uintptr
	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		name := fn.Name()
		if strings.HasPrefix(name, "runtime.") {
			continue
		}
		file, line := fn.FileLine(pc)
		if name != "" {
			return fmt.Sprintf("%s:%d", name, line)
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
	return "unknown"
}
