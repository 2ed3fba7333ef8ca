package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/concave-dev/trail/cmd/trailctl/client"
)

func TestFilterAndSortPeers(t *testing.T) {
	peers := []client.Peer{
		{Name: "walnut", Status: "alive"},
		{Name: "acorn", Status: "failed"},
		{Name: "birch", Status: "alive"},
	}

	tests := []struct {
		name   string
		status string
		want   []string
	}{
		{"no filter", "", []string{"acorn", "birch", "walnut"}},
		{"alive", "alive", []string{"birch", "walnut"}},
		{"case insensitive", "FAILED", []string{"acorn"}},
		{"no match", "left", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]client.Peer(nil), peers...)
			var got []string
			for _, p := range sortPeers(filterPeers(in, tt.status)) {
				got = append(got, p.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
