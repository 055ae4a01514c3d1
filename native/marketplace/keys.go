package marketplace

import "fmt"

func reserveKey() []byte {
	return []byte("marketplace/reserve")
}

func nextCampaignIDKey() []byte {
	return []byte("marketplace/nextCampaignId")
}

func campaignAddrKey(id uint64) []byte {
	return []byte(fmt.Sprintf("marketplace/campaign/%d", id))
}

func pausedKey() []byte {
	return []byte("marketplace/paused")
}
