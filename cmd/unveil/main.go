// Package main starts the unveil reveal service process lifecycle.
package main

import (
	unveilcmd "github.com/louisbranch/unveil/internal/cmd/unveil"
	entrypoint "github.com/louisbranch/unveil/internal/platform/cmd"
)

func main() {
	entrypoint.Main(entrypoint.ServiceUnveil, unveilcmd.ParseConfig, unveilcmd.Run)
}
