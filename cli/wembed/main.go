package main

import (
	"os"

	wembedcmder "github.com/papercomputeco/wembeddings/cmd/wembed"
)

func main() {
	cmd := wembedcmder.NewWembedCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
