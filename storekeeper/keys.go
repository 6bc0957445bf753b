package storekeeper

import "fmt"

// Key layout exactly as laid out in spec.md §6, "State Store key layout".

func stockKey() string {
	return "stock:packs"
}

func reservationKey(txID string) string {
	return fmt.Sprintf("stock:reservations:%s", txID)
}

func inventoryKey(playerID string) string {
	return fmt.Sprintf("inventory:%s", playerID)
}

func swapIntentKey(txID string) string {
	return fmt.Sprintf("inventory:swap_intent:%s", txID)
}

// claimKey names the set of card ids currently claimed by an in-flight swap
// intent against a player's inventory. verify_and_swap watches and writes
// this set so two concurrent swaps racing the same card are forced to
// serialize through the CAS, the same way reserve_pack serializes on
// stock:packs by writing the key it watches.
func claimKey(playerID string) string {
	return fmt.Sprintf("inventory:claimed:%s", playerID)
}

func txKey(txID string) string {
	return fmt.Sprintf("tx:%s", txID)
}

func materializedMarkerKey(txID string) string {
	return fmt.Sprintf("stock:materialized:%s", txID)
}

func nonterminalIndexKey() string {
	return "tx_index:nonterminal"
}
