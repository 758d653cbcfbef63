//go:build !unix

package stream

import "os"

// Advisory file locks are unix only; elsewhere readers and writers race.
func lockShared(*os.File) error    { return nil }
func lockExclusive(*os.File) error { return nil }
func unlock(*os.File) error        { return nil }
