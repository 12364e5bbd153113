//go:build windows

package window

import (
	"context"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procGetForegroundWindow  = user32.NewProc("GetForegroundWindow")
	procIsWindowVisible      = user32.NewProc("IsWindowVisible")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procEnumWindows          = user32.NewProc("EnumWindows")
)

type systemSource struct{}

func (systemSource) ActiveTitle(context.Context) (string, bool, error) {
	if err := user32.Load(); err != nil {
		return "", false, ErrUnsupported
	}
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return "", false, nil
	}
	title := windowText(hwnd)
	if title == "" {
		return "", false, nil
	}
	return title, true, nil
}

// EnumWindows state. The callback is created once and shared; enumMu
// serializes enumerations.
var (
	enumMu          sync.Mutex
	enumTitles      []string
	enumOnce        sync.Once
	enumWindowsProc uintptr
)

func (systemSource) VisibleTitles(ctx context.Context) ([]string, error) {
	if err := user32.Load(); err != nil {
		return nil, ErrUnsupported
	}
	enumOnce.Do(func() {
		enumWindowsProc = windows.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
			if visible, _, _ := procIsWindowVisible.Call(hwnd); visible != 0 {
				if title := windowText(hwnd); title != "" {
					enumTitles = append(enumTitles, title)
				}
			}
			return 1
		})
	})

	enumMu.Lock()
	enumTitles = nil
	procEnumWindows.Call(enumWindowsProc, 0)
	titles := enumTitles
	enumTitles = nil
	enumMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cleanTitles(titles), nil
}

func windowText(hwnd uintptr) string {
	length, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:n])
}
