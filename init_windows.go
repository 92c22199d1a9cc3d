//go:build windows

package main

import "syscall"

const utf8CodePage = 65001

// The welcome text and log echo contain emoji, so the console needs UTF-8 output
func init() {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	if proc := kernel32.NewProc("SetConsoleOutputCP"); proc.Find() == nil {
		proc.Call(uintptr(utf8CodePage))
	}
}
