// policypulse scans business records against compliance rules and
// drives autonomous agents that remediate the violations it finds.
package main

import "github.com/policypulse/policypulse/internal/cli"

func main() {
	cli.Execute()
}
