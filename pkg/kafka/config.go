package kafka

import "time"

// Config holds Kafka producer configuration
type Config struct {
	Brokers  []string
	ClientID string

	BatchSize    int
	BatchTimeout time.Duration
	// RequiredAcks: 0 none, 1 leader, -1 all in-sync replicas
	RequiredAcks int
}

// Topics published by the fulfillment service
var Topics = struct {
	JobEvents         string
	TransferEvents    string
	DiscrepancyEvents string
	InventoryEvents   string
}{
	JobEvents:         "wms.fulfillment.jobs",
	TransferEvents:    "wms.fulfillment.transfers",
	DiscrepancyEvents: "wms.fulfillment.discrepancies",
	InventoryEvents:   "wms.inventory.events",
}
