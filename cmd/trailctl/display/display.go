// Package display renders API results as tables or JSON.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/concave-dev/trail/cmd/trailctl/client"
	"github.com/concave-dev/trail/cmd/trailctl/config"
	"github.com/concave-dev/trail/internal/logging"
	internalutils "github.com/concave-dev/trail/internal/utils"
)

// Out receives all command output.
var Out io.Writer = os.Stdout

func jsonOutput() bool {
	return config.Global.Output == "json"
}

func encodeJSON(v any) {
	encoder := json.NewEncoder(Out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		logging.Error("Failed to encode JSON: %v", err)
		fmt.Fprintln(Out, "Error encoding JSON output")
	}
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// DisplayHealth shows node health and its open batch processors.
func DisplayHealth(h *client.Health) {
	if jsonOutput() {
		encodeJSON(h)
		return
	}

	fmt.Fprintf(Out, "Status:   %s\n", h.Status)
	fmt.Fprintf(Out, "Version:  %s\n", h.Version)
	fmt.Fprintf(Out, "Uptime:   %s\n", h.Uptime)
	fmt.Fprintf(Out, "Open batch processors: %d\n", len(h.Batches))

	if len(h.Batches) == 0 {
		return
	}
	fmt.Fprintln(Out)

	w := newTable()
	defer w.Flush()
	fmt.Fprintln(w, "AUTHOR\tTYPE\tOPEN BATCH\tRECORDS\tQUEUED\tDISPATCHING")
	for _, p := range h.Batches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			p.Author, p.Type, orDash(internalutils.TruncateID(p.OpenBatchID)),
			p.OpenRecords, p.Queued, orDash(internalutils.TruncateID(p.Dispatching)))
	}
}

func batchStatus(b client.Batch) string {
	switch {
	case !b.Pending():
		return "completed"
	case b.Receipt != "":
		return "submitted"
	default:
		return "pending"
	}
}

// DisplayBatches lists batches, newest first.
func DisplayBatches(batches []client.Batch) {
	if len(batches) == 0 {
		if jsonOutput() {
			fmt.Fprintln(Out, "[]")
		} else {
			fmt.Fprintln(Out, "No batches found")
		}
		return
	}

	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].Created.After(batches[j].Created)
	})

	if jsonOutput() {
		encodeJSON(batches)
		return
	}

	w := newTable()
	defer w.Flush()

	if config.Global.Verbose {
		fmt.Fprintln(w, "ID\tTYPE\tAUTHOR\tRECORDS\tSTATUS\tCREATED\tHASH\tRECEIPT")
	} else {
		fmt.Fprintln(w, "ID\tTYPE\tAUTHOR\tRECORDS\tSTATUS\tCREATED")
	}

	for _, b := range batches {
		if config.Global.Verbose {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				b.BatchID, b.Type, b.Author, len(b.Records), batchStatus(b),
				humanize.Time(b.Created), orDash(b.BatchHash), orDash(b.Receipt))
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				internalutils.TruncateID(b.BatchID), b.Type, b.Author, len(b.Records),
				batchStatus(b), humanize.Time(b.Created))
		}
	}
}

// DisplayBatchInfo shows one batch and its records.
func DisplayBatchInfo(b *client.Batch) {
	if jsonOutput() {
		encodeJSON(b)
		return
	}

	fmt.Fprintf(Out, "Batch Information:\n")
	fmt.Fprintf(Out, "  ID:        %s\n", b.BatchID)
	fmt.Fprintf(Out, "  Type:      %s\n", b.Type)
	fmt.Fprintf(Out, "  Author:    %s\n", b.Author)
	fmt.Fprintf(Out, "  Status:    %s\n", batchStatus(*b))
	fmt.Fprintf(Out, "  Created:   %s (%s)\n", b.Created.Format("2006-01-02 15:04:05 MST"), humanize.Time(b.Created))
	if b.Completed != nil {
		fmt.Fprintf(Out, "  Completed: %s (%s)\n", b.Completed.Format("2006-01-02 15:04:05 MST"), humanize.Time(*b.Completed))
	}
	if b.BatchHash != "" {
		fmt.Fprintf(Out, "  Hash:      %s\n", b.BatchHash)
	}
	if b.Receipt != "" {
		fmt.Fprintf(Out, "  Receipt:   %s\n", b.Receipt)
	}
	if b.TransactionHash != "" {
		fmt.Fprintf(Out, "  Tx Hash:   %s\n", b.TransactionHash)
		fmt.Fprintf(Out, "  Block:     %s\n", humanize.Comma(b.BlockNumber))
	}

	fmt.Fprintf(Out, "\nRecords (%d):\n", len(b.Records))
	if len(b.Records) == 0 {
		return
	}

	w := newTable()
	defer w.Flush()
	fmt.Fprintln(w, "  TYPE\tDEFINITION\tINSTANCE\tDETAIL")
	for _, r := range b.Records {
		instance := r.ID
		if instance == "" {
			instance = r.AssetInstanceID
		}

		var detail string
		switch {
		case r.Key != "":
			detail = fmt.Sprintf("%s=%s", r.Key, r.Value)
		case r.IsContentPrivate:
			detail = "private " + r.ContentHash
		default:
			detail = r.ContentHash
		}

		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", r.RecordType,
			orDash(internalutils.TruncateID(r.AssetDefinitionID)), orDash(instance), orDash(detail))
	}
}

// DisplayMembers lists registered members.
func DisplayMembers(members []client.Member) {
	if len(members) == 0 {
		if jsonOutput() {
			fmt.Fprintln(Out, "[]")
		} else {
			fmt.Fprintln(Out, "No members found")
		}
		return
	}

	if jsonOutput() {
		encodeJSON(members)
		return
	}

	w := newTable()
	defer w.Flush()

	if config.Global.Verbose {
		fmt.Fprintln(w, "ADDRESS\tNAME\tOWNED\tAPP2APP\tDOCEXCHANGE\tBLOCK")
	} else {
		fmt.Fprintln(w, "ADDRESS\tNAME\tOWNED")
	}

	for _, m := range members {
		if config.Global.Verbose {
			block := "-"
			if m.BlockNumber > 0 {
				block = humanize.Comma(m.BlockNumber)
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n", m.Address, m.Name, m.Owned,
				orDash(m.App2AppDestination), orDash(m.DocExchangeDestination), block)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%t\n", m.Address, m.Name, m.Owned)
		}
	}
}

// DisplayPeers lists gossip peers.
func DisplayPeers(peers []client.Peer) {
	if len(peers) == 0 {
		if jsonOutput() {
			fmt.Fprintln(Out, "[]")
		} else {
			fmt.Fprintln(Out, "No peers found (is gossip disabled on this node?)")
		}
		return
	}

	if jsonOutput() {
		encodeJSON(peers)
		return
	}

	w := newTable()
	defer w.Flush()

	if config.Global.Verbose {
		fmt.Fprintln(w, "ID\tNAME\tADDRESS\tSTATUS\tMEMBER\tAPI PORT\tLAST SEEN\tTAGS")
	} else {
		fmt.Fprintln(w, "ID\tNAME\tADDRESS\tSTATUS\tMEMBER\tLAST SEEN")
	}

	for _, p := range peers {
		address := fmt.Sprintf("%s:%d", p.Addr, p.Port)
		lastSeen := humanize.Time(p.LastSeen)

		if config.Global.Verbose {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				p.ID, p.Name, address, p.Status, orDash(p.MemberAddress), orDash(p.APIPort),
				lastSeen, formatTags(p.Tags))
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				internalutils.TruncateID(p.ID), p.Name, address, p.Status, orDash(p.MemberAddress), lastSeen)
		}
	}
}

// DisplayPeerInfo shows one peer.
func DisplayPeerInfo(p *client.Peer) {
	if jsonOutput() {
		encodeJSON(p)
		return
	}

	fmt.Fprintf(Out, "Peer Information:\n")
	fmt.Fprintf(Out, "  ID:          %s\n", p.ID)
	fmt.Fprintf(Out, "  Name:        %s\n", p.Name)
	fmt.Fprintf(Out, "  Address:     %s:%d\n", p.Addr, p.Port)
	fmt.Fprintf(Out, "  Status:      %s\n", p.Status)
	fmt.Fprintf(Out, "  Last Seen:   %s\n", humanize.Time(p.LastSeen))
	fmt.Fprintf(Out, "  Member:      %s\n", orDash(p.MemberAddress))
	fmt.Fprintf(Out, "  API Port:    %s\n", orDash(p.APIPort))
	fmt.Fprintf(Out, "  App2App:     %s\n", orDash(p.App2AppDestination))
	fmt.Fprintf(Out, "  DocExchange: %s\n", orDash(p.DocExchangeDestination))
	if len(p.Tags) > 0 {
		fmt.Fprintf(Out, "  Tags:        %s\n", formatTags(p.Tags))
	}
}

func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + tags[k]
	}
	return strings.Join(pairs, ",")
}
