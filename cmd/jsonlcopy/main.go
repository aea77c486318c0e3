// Command jsonlcopy moves JSON Lines data in and out of PostgreSQL tables.
//
//	jsonlcopy import --table events --file events.jsonl
//	jsonlcopy export --table events --columns id,payload > events.jsonl
//	jsonlcopy validate --columns "id:int4,amount:numeric(10,2)" --file events.jsonl
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
