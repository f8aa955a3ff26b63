// Package cli is the command layer of the device agent.
//
// Commands can be given once on the command line (agent upload) or typed
// into the interactive loop started when no command is given:
//
//	upload           collect a snapshot and send it to the collector
//	export [file]    collect a snapshot and store it encrypted
//	show <file>      decrypt and print an exported snapshot
//	ping             check the collector's health endpoint
//	help             list commands
//	exit | quit      leave the loop
package cli
