// Command crmextract extracts CRM records from rendered page snapshots and
// merges them into a key-value store.
//
// Usage (one snapshot from a file):
//
//	crmextract -c config.yaml extract --file lead-list.html --url "https://x.lightning.force.com/lightning/o/Lead/list"
//
// Usage (snapshot on stdin, URL discovered from <link rel="canonical">):
//
//	cat page.html | crmextract extract
//
// Usage (every snapshot in a directory):
//
//	crmextract dir ./snapshots
//
// Serve the HTTP API (and the NATS trigger when nats.endpoint is set):
//
//	crmextract -c config.yaml serve
//
// Inspect and export what is stored:
//
//	crmextract records --type leads --q acme
//	crmextract export csv -o leads.csv
//
// Debug a page that stopped yielding records:
//
//	crmextract plan --file page.html
//	crmextract select "tr.slds-hint-parent" --file page.html --text
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
