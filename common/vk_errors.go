package common

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	vk "github.com/goki/vulkan"
)

// NewError wraps a non-success vulkan result together with the call site so
// driver failures can be traced without a debugger attached.
func NewError(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("vulkan error: %s (%d)", vk.Error(ret).Error(), ret)
	}
	return fmt.Errorf("vulkan error: %s (%d) on %s:%d", vk.Error(ret).Error(), ret, filepath.Base(file), line)
}

// Fatal runs the given finalizers, appends the error to fatal_log.txt and
// exits. Only main should end up here, everything below hands errors up.
func Fatal(err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	file, ferr := os.OpenFile("fatal_log.txt", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if ferr != nil {
		log.Fatal(err)
	}
	fatalLog := log.New(file, "FATAL: ", log.Ldate|log.Ltime|log.Lshortfile)
	fatalLog.Fatal(err)
}
