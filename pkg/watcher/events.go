package watcher

import (
	"github.com/gagliardetto/solana-go"

	"solexplorer/pkg/models"
)

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventAccountUpdated       EventType = "account_updated"
	EventClusterStatusUpdated EventType = "cluster_status_updated"
	EventClusterChanged       EventType = "cluster_changed"
)

// Event represents a watcher event.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// AccountUpdate is the payload of EventAccountUpdated.
type AccountUpdate struct {
	Key   solana.PublicKey
	State models.FetchState
}

// ClusterUpdate is the payload of the cluster events.
type ClusterUpdate struct {
	Cluster string
	Status  ClusterStatus
	Health  models.ClusterHealth
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
