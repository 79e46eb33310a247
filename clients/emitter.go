package clients

// Emitter is the interface adapters must satisfy to bridge client events to the engine.
type Emitter interface {
	EmitClientRegistered(clientID int64, code, name string)
	EmitClientStatusChanged(clientID int64, code, oldStatus, newStatus, actor string)
}
