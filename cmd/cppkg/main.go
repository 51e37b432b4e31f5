package main

import "github.com/goplus/cppkg/cmd/cppkg/internal"

func main() {
	internal.Execute()
}
