package server

import "solexplorer/pkg/watcher"

type wireEvent struct {
	Type watcher.EventType `json:"type"`
	Data interface{}       `json:"data"`
}

type accountPayload struct {
	Address string `json:"address"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type clusterPayload struct {
	Cluster   string                `json:"cluster"`
	Status    watcher.ClusterStatus `json:"status"`
	RPCURL    string                `json:"rpc_url,omitempty"`
	LatencyMS int64                 `json:"latency_ms"`
	Error     string                `json:"error,omitempty"`
}

// toWire flattens watcher events into the JSON sent to websocket clients.
func toWire(event watcher.Event) wireEvent {
	switch data := event.Data.(type) {
	case watcher.AccountUpdate:
		p := accountPayload{Address: data.Key.String(), Status: data.State.Status.String()}
		if data.State.Err != nil {
			p.Error = data.State.Err.Error()
		}
		return wireEvent{Type: event.Type, Data: p}
	case watcher.ClusterUpdate:
		p := clusterPayload{
			Cluster:   data.Cluster,
			Status:    data.Status,
			RPCURL:    data.Health.RPCURL,
			LatencyMS: data.Health.Latency.Milliseconds(),
		}
		if data.Health.Err != nil {
			p.Error = data.Health.Err.Error()
		}
		return wireEvent{Type: event.Type, Data: p}
	default:
		return wireEvent{Type: event.Type, Data: event.Data}
	}
}
