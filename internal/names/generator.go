// Package names generates readable "adjective-noun" node names such as
// "amber-ledger" for daemons started without --name. Every generated name
// passes validate.NodeNameFormat.
package names

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	"amber", "ancient", "azure", "bold", "brisk", "calm", "candid", "cedar",
	"clever", "coastal", "cobalt", "crimson", "dawn", "distant", "eager", "early",
	"even", "faithful", "fleet", "frosty", "gentle", "gilded", "granite", "hardy",
	"hidden", "honest", "iron", "ivory", "jade", "keen", "kind", "lively",
	"loyal", "lucid", "marble", "mellow", "misty", "modest", "noble", "northern",
	"onyx", "patient", "plain", "proud", "quiet", "rapid", "rustic", "sable",
	"silent", "silver", "solid", "steady", "stoic", "sturdy", "swift", "tidy",
	"true", "upright", "valiant", "vivid", "wandering", "willow", "wise", "young",
}

var nouns = []string{
	"abacus", "anchor", "archive", "atlas", "beacon", "bond", "bridge", "caravan",
	"cargo", "charter", "cipher", "coin", "compass", "courier", "crest", "deed",
	"depot", "docket", "escrow", "falcon", "ferry", "folio", "forge", "harbor",
	"herald", "index", "journal", "keystone", "lantern", "ledger", "levy", "manifest",
	"mint", "notary", "outpost", "parcel", "pilot", "quill", "receipt", "relay",
	"ribbon", "scribe", "seal", "sentinel", "signet", "stamp", "steward", "tally",
	"tariff", "token", "tower", "trader", "trail", "treasury", "vault", "voucher",
	"warden", "waypoint", "wharf", "writ",
}

// Generate returns a random "adjective-noun" name.
func Generate() string {
	return fmt.Sprintf("%s-%s", adjectives[randomIndex(len(adjectives))], nouns[randomIndex(len(nouns))])
}

func randomIndex(max int) int {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}
