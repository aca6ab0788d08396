package main

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli/v2"
)

func versionCmd(*cli.Context) error {
	fmt.Printf("Version = %s\n", version)
	fmt.Printf("Go version = %s\n", runtime.Version())
	fmt.Printf("OS/Arch = %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return nil
}
