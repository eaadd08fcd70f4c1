//go:build linux || darwin

package main

/*
#include <errno.h>

static void set_errno_enomem(void) {
	errno = ENOMEM;
}
*/
import "C"

// setErrnoENOMEM sets errno for the calling thread. Safe only from inside
// a //export function: cgo pins the goroutine to its OS thread for the
// duration of a call arriving from C, so errno set here is still visible
// to the C caller once the export function returns.
func setErrnoENOMEM() {
	C.set_errno_enomem()
}
