package log

import (
	"os"
	"sync"
	"testing"
)

var (
	_testingLoggerMutex = sync.Mutex{}
	_testingLogger      Logger
)

// TestingLogger returns a Logger that writes to stdout when tests run with
// -v, and a no-op Logger otherwise. The call must be made from inside a
// test function, since testing.Verbose only reports correctly by then.
func TestingLogger() Logger {
	_testingLoggerMutex.Lock()
	defer _testingLoggerMutex.Unlock()
	if _testingLogger != nil {
		return _testingLogger
	}

	if testing.Verbose() {
		_testingLogger = NewDefaultLogger(os.Stdout, FormatPlain, "debug")
	} else {
		_testingLogger = NewNopLogger()
	}

	return _testingLogger
}
