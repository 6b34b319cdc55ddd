// The kestrel command runs and inspects workloads built on the kestrel
// virtualization core.
package main

import "github.com/kestrel-os/kestrel/cmd/kestrel/cmd"

func main() {
	cmd.Execute()
}
