package main

import "github.com/smsdesk-org/smsdesk/cmd"

func main() {
	cmd.Execute()
}
