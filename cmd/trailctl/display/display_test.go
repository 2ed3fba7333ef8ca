package display

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concave-dev/trail/cmd/trailctl/client"
	"github.com/concave-dev/trail/cmd/trailctl/config"
)

func capture(t *testing.T, output string, verbose bool) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prevOut, prevFormat, prevVerbose := Out, config.Global.Output, config.Global.Verbose
	Out, config.Global.Output, config.Global.Verbose = buf, output, verbose
	t.Cleanup(func() {
		Out, config.Global.Output, config.Global.Verbose = prevOut, prevFormat, prevVerbose
	})
	return buf
}

func TestDisplayBatchesTable(t *testing.T) {
	buf := capture(t, "table", false)
	now := time.Now()

	DisplayBatches([]client.Batch{
		{BatchID: "older", Type: "assetInstance", Author: "0xa", Created: now.Add(-time.Hour), Completed: &now},
		{BatchID: "newer", Type: "assetInstance", Author: "0xa", Created: now, Receipt: "r1",
			Records: []client.Record{{RecordType: "assetInstance"}}},
	})

	out := buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "submitted")
	assert.Contains(t, out, "completed")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("newer")), bytes.Index(buf.Bytes(), []byte("older")))
}

func TestDisplayBatchesEmpty(t *testing.T) {
	buf := capture(t, "table", false)
	DisplayBatches(nil)
	assert.Equal(t, "No batches found\n", buf.String())

	buf = capture(t, "json", false)
	DisplayBatches(nil)
	assert.Equal(t, "[]\n", buf.String())
}

func TestDisplayBatchInfoJSON(t *testing.T) {
	buf := capture(t, "json", false)
	DisplayBatchInfo(&client.Batch{BatchID: "b1", Type: "assetDefinition", BatchHash: "0x01"})

	var decoded client.Batch
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "b1", decoded.BatchID)
	assert.Equal(t, "0x01", decoded.BatchHash)
}

func TestDisplayBatchInfoRecords(t *testing.T) {
	buf := capture(t, "table", false)
	DisplayBatchInfo(&client.Batch{
		BatchID: "b1",
		Records: []client.Record{
			{RecordType: "assetInstanceProperty", AssetInstanceID: "i1", Key: "color", Value: "red"},
			{RecordType: "assetInstance", ID: "i2", ContentHash: "0xff", IsContentPrivate: true},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Records (2):")
	assert.Contains(t, out, "color=red")
	assert.Contains(t, out, "private 0xff")
	assert.Contains(t, out, "pending")
}

func TestDisplayMembersVerbose(t *testing.T) {
	buf := capture(t, "table", true)
	DisplayMembers([]client.Member{{Address: "0xa", Name: "org1", Owned: true, BlockNumber: 12345}})

	out := buf.String()
	assert.Contains(t, out, "APP2APP")
	assert.Contains(t, out, "12,345")
}

func TestDisplayPeers(t *testing.T) {
	buf := capture(t, "table", true)
	DisplayPeers([]client.Peer{{
		ID: "n1", Name: "ledger-node", Addr: "10.0.0.1", Port: 4210, Status: "alive",
		Tags: map[string]string{"b": "2", "a": "1"}, LastSeen: time.Now(),
	}})

	out := buf.String()
	assert.Contains(t, out, "10.0.0.1:4210")
	assert.Contains(t, out, "a=1,b=2")
}

func TestDisplayHealth(t *testing.T) {
	buf := capture(t, "table", false)
	DisplayHealth(&client.Health{
		Status: "healthy", Version: "0.1.0", Uptime: "1m0s",
		Batches: []client.ProcessorStats{{Author: "0xa", Type: "assetInstance", OpenRecords: 3}},
	})

	out := buf.String()
	assert.Contains(t, out, "Open batch processors: 1")
	assert.Contains(t, out, "assetInstance")
}
