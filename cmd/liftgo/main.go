// The liftgo tool lifts machine-code functions described by a program spec
// into LLVM IR assembly, printed to standard output.
package main

import "github.com/mewmew/liftgo/cmd/liftgo/cmd"

func main() {
	cmd.Execute()
}
