// sessionctl inspects and revokes sessions and bans users from the command line.
package main

import "pawplanner/backend/cmd/sessionctl/cmd"

func main() {
	cmd.Execute()
}
