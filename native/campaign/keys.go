package campaign

import (
	"encoding/hex"
	"fmt"
)

func ledgerKey(id uint64) []byte {
	return []byte(fmt.Sprintf("campaign/ledger/%d", id))
}

func affiliateKey(id, affiliateID uint64) []byte {
	return []byte(fmt.Sprintf("campaign/affiliate/%d/%d", id, affiliateID))
}

// affiliateAddrKey indexes the affiliate id by wallet address so repeat
// registrations can be rejected.
func affiliateAddrKey(id uint64, addr [20]byte) []byte {
	return []byte(fmt.Sprintf("campaign/affaddr/%d/%s", id, hex.EncodeToString(addr[:])))
}

// allowListKey holds the closed-campaign allow-list as one address-keyed
// record so campaign removal can delete it wholesale.
func allowListKey(id uint64) []byte {
	return []byte(fmt.Sprintf("campaign/allow/%d", id))
}

// depositKey marks a stable-asset transfer notification as processed; the
// entry makes duplicate notifications idempotent.
func depositKey(id uint64, ref string) []byte {
	return []byte(fmt.Sprintf("campaign/deposit/%d/%s", id, ref))
}

// depositIndexKey lists the processed deposit refs so campaign removal can
// clear the dedup records.
func depositIndexKey(id uint64) []byte {
	return []byte(fmt.Sprintf("campaign/deposits/%d", id))
}

func addrString(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}
